package clog

import (
	"log/slog"
	"strings"
)

// NamespaceKey 是日志中命名空间的字段名
const NamespaceKey = "namespace"

func namespaceAttr(o *options) (slog.Attr, bool) {
	if o == nil || len(o.namespaceParts) == 0 {
		return slog.Attr{}, false
	}
	return slog.String(NamespaceKey, strings.Join(o.namespaceParts, o.namespaceJoiner)), true
}
