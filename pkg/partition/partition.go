// Package partition 提供预分析用的时间区段结构
//
// 以整个周期为底，将约束推导出的区间逐段"涂"上标注，
// 按需切分区间并保持不重叠、无缝隙的全覆盖。
// 仅供预分析引擎使用，ILP 建模不读取该结构。
package partition

import (
	"fmt"
	"sort"
)

// TimeInterval 时间区间（半开 [Start, End)，单位为周期内的绝对分钟）
type TimeInterval struct {
	Start int
	End   int
}

// Duration 返回区间时长
func (iv TimeInterval) Duration() int {
	return iv.End - iv.Start
}

// Overlaps 检查两个区间是否重叠
func (iv TimeInterval) Overlaps(other TimeInterval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// Contains 检查是否完整包含另一区间
func (iv TimeInterval) Contains(other TimeInterval) bool {
	return iv.Start <= other.Start && other.End <= iv.End
}

// SlotData 区段上累积的标注
type SlotData struct {
	// Forbidden 为真表示该区段被约束禁用
	Forbidden bool
	// Value 可用度（0..8），nil 表示该标注未声明可用度
	Value *int
	// ConstraintType 产生该标注的约束标识
	ConstraintType string
}

// segment 分区内部的一个区段
type segment struct {
	interval TimeInterval
	data     []SlotData
}

// Partition 周期分区
// 不变式：区段互不重叠、按时间有序、并集等于初始全周期区间。
type Partition struct {
	origin   TimeInterval
	segments []*segment
}

// New 以整个周期为单一区段创建分区
func New(start, end int) (*Partition, error) {
	if end <= start {
		return nil, fmt.Errorf("非法周期区间 [%d, %d)", start, end)
	}
	return &Partition{
		origin: TimeInterval{Start: start, End: end},
		segments: []*segment{
			{interval: TimeInterval{Start: start, End: end}},
		},
	}, nil
}

// AddSlot 将区间涂上标注
// 在 interval 的边界处切分既有区段，向每个与之重叠的区段追加 data 的副本；
// 区间外的区段保持不变。超出周期的部分被裁剪。
func (p *Partition) AddSlot(interval TimeInterval, data SlotData) {
	// 裁剪到周期内
	if interval.Start < p.origin.Start {
		interval.Start = p.origin.Start
	}
	if interval.End > p.origin.End {
		interval.End = p.origin.End
	}
	if interval.End <= interval.Start {
		return
	}

	var result []*segment
	for _, seg := range p.segments {
		if !seg.interval.Overlaps(interval) {
			result = append(result, seg)
			continue
		}

		// 左侧不重叠部分
		if seg.interval.Start < interval.Start {
			result = append(result, &segment{
				interval: TimeInterval{Start: seg.interval.Start, End: interval.Start},
				data:     cloneData(seg.data),
			})
		}

		// 重叠部分：追加标注
		overlapStart := maxInt(seg.interval.Start, interval.Start)
		overlapEnd := minInt(seg.interval.End, interval.End)
		result = append(result, &segment{
			interval: TimeInterval{Start: overlapStart, End: overlapEnd},
			data:     append(cloneData(seg.data), data),
		})

		// 右侧不重叠部分
		if interval.End < seg.interval.End {
			result = append(result, &segment{
				interval: TimeInterval{Start: interval.End, End: seg.interval.End},
				data:     cloneData(seg.data),
			})
		}
	}

	p.segments = result
	// 输入若未按序提供，这里兜底恢复不变式
	sort.Slice(p.segments, func(i, j int) bool {
		return p.segments[i].interval.Start < p.segments[j].interval.Start
	})
}

// AddSlots 按起点排序后依次涂上同一标注
func (p *Partition) AddSlots(intervals []TimeInterval, data SlotData) {
	sorted := make([]TimeInterval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for _, iv := range sorted {
		p.AddSlot(iv, data)
	}
}

// Intervals 返回当前全部区段
func (p *Partition) Intervals() []TimeInterval {
	result := make([]TimeInterval, len(p.segments))
	for i, seg := range p.segments {
		result[i] = seg.interval
	}
	return result
}

// DataAt 返回指定起点所在区段的标注
func (p *Partition) DataAt(point int) []SlotData {
	for _, seg := range p.segments {
		if seg.interval.Start <= point && point < seg.interval.End {
			return seg.data
		}
	}
	return nil
}

// Origin 返回初始全周期区间
func (p *Partition) Origin() TimeInterval {
	return p.origin
}

// AvailableDuration 返回未被禁用区段的总时长
func (p *Partition) AvailableDuration() int {
	total := 0
	for _, seg := range p.segments {
		if !segForbidden(seg) {
			total += seg.interval.Duration()
		}
	}
	return total
}

// ForbiddenDuration 返回被禁用区段的总时长
func (p *Partition) ForbiddenDuration() int {
	return p.origin.Duration() - p.AvailableDuration()
}

// NbSlotsFitting 统计能容纳指定时长的可用连续区段个数
// 相邻的可用区段先合并再计数。
func (p *Partition) NbSlotsFitting(duration int) int {
	if duration <= 0 {
		return 0
	}
	count := 0
	runLength := 0
	for _, seg := range p.segments {
		if segForbidden(seg) {
			count += runLength / duration
			runLength = 0
			continue
		}
		runLength += seg.interval.Duration()
	}
	count += runLength / duration
	return count
}

// Validate 校验分区不变式：区段有序、互不重叠、无缝覆盖全周期
func (p *Partition) Validate() error {
	if len(p.segments) == 0 {
		return fmt.Errorf("分区为空")
	}
	if p.segments[0].interval.Start != p.origin.Start {
		return fmt.Errorf("首区段起点 %d 与周期起点 %d 不符", p.segments[0].interval.Start, p.origin.Start)
	}
	for i := 0; i < len(p.segments)-1; i++ {
		if p.segments[i].interval.End != p.segments[i+1].interval.Start {
			return fmt.Errorf("区段 %d 与 %d 之间存在缝隙或重叠", i, i+1)
		}
	}
	if p.segments[len(p.segments)-1].interval.End != p.origin.End {
		return fmt.Errorf("末区段终点与周期终点不符")
	}
	return nil
}

// segForbidden 检查区段是否被任一标注禁用
// 未声明可用度的标注不算禁用，只有显式的 0 才算。
func segForbidden(seg *segment) bool {
	for _, d := range seg.data {
		if d.Forbidden || (d.Value != nil && *d.Value == 0) {
			return true
		}
	}
	return false
}

func cloneData(data []SlotData) []SlotData {
	cloned := make([]SlotData, len(data))
	copy(cloned, data)
	return cloned
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
