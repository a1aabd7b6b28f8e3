package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinimalHalfDays(t *testing.T) {
	tests := []struct {
		name      string
		durations []int
		capacity  int
		want      int
	}{
		{
			// 朴素上取整给 540/270=2，但任何半天装不下两门 3 小时课
			name:      "三门3小时对4小时半容量",
			durations: []int{180, 180, 180},
			capacity:  270,
			want:      3,
		},
		{
			name:      "恰好装满一个半天",
			durations: []int{90, 90, 90},
			capacity:  270,
			want:      1,
		},
		{
			name:      "大小混装",
			durations: []int{180, 90, 90, 60},
			capacity:  270,
			want:      2,
		},
		{
			name:      "无课程",
			durations: nil,
			capacity:  270,
			want:      0,
		},
		{
			name:      "单门超长课仍占一个半天",
			durations: []int{300},
			capacity:  270,
			want:      1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MinimalHalfDays(tt.durations, tt.capacity))
		})
	}
}

func TestMinimalHalfDays_NeverBelowNaiveBound(t *testing.T) {
	durations := []int{120, 100, 80, 60, 45, 30}
	capacity := 270
	total := 0
	for _, d := range durations {
		total += d
	}
	naive := (total + capacity - 1) / capacity
	assert.GreaterOrEqual(t, MinimalHalfDays(durations, capacity), naive)
}
