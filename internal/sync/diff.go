package sync

import (
	"strings"

	"ftpmirror/internal/fs"
)

// ExtensionFilter 允许下载的文件后缀，空表示不过滤
type ExtensionFilter []string

// ParseExtensionFilter 解析逗号分隔的后缀列表，例如 ".txt, csv,tar.gz"
// 后缀统一转为小写并补上前导 "."
func ParseExtensionFilter(s string) ExtensionFilter {
	var f ExtensionFilter
	for _, part := range strings.Split(s, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" || ext == "." {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f = append(f, ext)
	}
	return f
}

// Match 文件名是否命中任一后缀 (不区分大小写)
func (f ExtensionFilter) Match(name string) bool {
	if len(f) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range f {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Decide 决策函数，纯函数，按顺序:
//  1. 后缀过滤未命中 -> 跳过 (先于大小比较)
//  2. 本地不存在 -> 下载
//  3. 本地大小等于远程大小且未强制 -> 跳过
//  4. 其它情况 (大小不同或强制覆盖) -> 下载
//
// 只比较字节数：内容不同但大小相同的文件会被视为已同步
func Decide(name string, local fs.LocalFile, remoteSize int64, force bool, filter ExtensionFilter) Decision {
	if !filter.Match(name) {
		return Decision{Op: OpSkip, Reason: ReasonFiltered}
	}
	if !local.Exists {
		return Decision{Op: OpDownload, Reason: ReasonMissing}
	}
	if local.Size == remoteSize && !force {
		return Decision{Op: OpSkip, Reason: ReasonSameSize}
	}
	if local.Size != remoteSize {
		return Decision{Op: OpDownload, Reason: ReasonSizeMismatch}
	}
	return Decision{Op: OpDownload, Reason: ReasonForced}
}
