package domain

import "fmt"

// ResumeCursor 是一次 run 的断点位置，由操作者手工给出，只消费一次，不落盘。
//
// AssetIndex 只作用于第一个被处理的分类；之后的分类一律从 0 开始。
type ResumeCursor struct {
	ClassifyIndex int
	AssetIndex    int
}

// Validate 拒绝负数下标。越界（超过分类数）不算错误，由调用方决定如何提示。
func (c ResumeCursor) Validate() error {
	if c.ClassifyIndex < 0 {
		return fmt.Errorf("分类下标不能为负数：%d", c.ClassifyIndex)
	}
	if c.AssetIndex < 0 {
		return fmt.Errorf("资源下标不能为负数：%d", c.AssetIndex)
	}
	return nil
}

// AssetStartFor 返回第 classifyIndex 个分类应从哪个资源下标开始。
func (c ResumeCursor) AssetStartFor(classifyIndex int) int {
	if classifyIndex == c.ClassifyIndex {
		return c.AssetIndex
	}
	return 0
}

func (c ResumeCursor) String() string {
	return fmt.Sprintf("%d/%d", c.ClassifyIndex, c.AssetIndex)
}
