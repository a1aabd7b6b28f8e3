// Package constraint 实现排课约束目录
//
// 每种约束是一个实现建模能力（Enricher）的类型，按封闭注册表
// 以 kind 标签实例化；预分析、分区补全与事后审计是可选能力，
// 引擎通过静态类型断言探测。
package constraint

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/partition"
	"github.com/kebiao/kebiao/pkg/scheduler/ttmodel"
)

// BaseConstraint 约束基础实现（提供 kind 标签）
type BaseConstraint struct {
	kind string
}

// Kind 返回约束类型标签
func (b BaseConstraint) Kind() string { return b.kind }

// Auditor 事后审计能力：检查已排结果是否满足约束
type Auditor interface {
	IsSatisfied(d *ttmodel.Data, row *model.TimetableConstraint, scheduled []*model.ScheduledCourse) bool
}

// PartitionCompleter 分区补全能力：把约束蕴含的禁用时段涂进预分析分区
// day 为周期内的具体日期，分区以当日分钟为坐标。
type PartitionCompleter interface {
	CompletePartition(p *partition.Partition, d *ttmodel.Data, row *model.TimetableConstraint, day string, tutorID uuid.UUID)
}

// DecodeParams 把约束行的 JSON 参数解码为类型化结构
func DecodeParams(row *model.TimetableConstraint, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("构造参数解码器失败: %w", err)
	}
	if err := decoder.Decode(map[string]interface{}(row.Params)); err != nil {
		return fmt.Errorf("约束参数无效: %w", err)
	}
	return nil
}

// ParseUUID 解析参数中的 UUID 字符串
func ParseUUID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("参数 %s 不是合法的 UUID: %q", field, value)
	}
	return id, nil
}

// ParseUUIDs 解析参数中的 UUID 字符串列表
func ParseUUIDs(field string, values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := ParseUUID(field, v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
