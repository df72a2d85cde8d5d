package metrics

// Label 指标标签，为指标添加维度信息
//
// 避免高基数标签（用户 ID、请求 ID、生成的 ID 本身等）。
type Label struct {
	Key   string
	Value string
}

// L 便捷构造函数，创建一个 Label 实例
//
//	counter.Inc(ctx, metrics.L("template", "order"))
func L(key, value string) Label {
	return Label{
		Key:   key,
		Value: value,
	}
}
