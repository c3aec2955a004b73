package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// LevelTag 能力等级标签：上游可能给出数字等级，也可能给出字符串等级
type LevelTag struct {
	number  int
	symbol  string
	numeric bool
}

func NumericLevel(n int) LevelTag {
	return LevelTag{number: n, numeric: true}
}

func SymbolicLevel(s string) LevelTag {
	return LevelTag{symbol: s}
}

// Number 数字等级原样返回，字符串等级统一视为 1 级
func (t LevelTag) Number() int {
	if t.numeric {
		return t.number
	}
	return 1
}

func (t LevelTag) IsNumeric() bool {
	return t.numeric
}

func (t LevelTag) String() string {
	if t.numeric {
		return fmt.Sprintf("%d", t.number)
	}
	return t.symbol
}

func (t LevelTag) MarshalJSON() ([]byte, error) {
	if t.numeric {
		return json.Marshal(t.number)
	}
	return json.Marshal(t.symbol)
}

func (t *LevelTag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = SymbolicLevel(s)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("competency level must be a number or a string: %w", err)
	}
	*t = NumericLevel(int(math.Round(f)))
	return nil
}

// Competency 能力名称 -> 等级标签列表
type Competency map[string][]LevelTag

// Names 按字母序返回能力名称，保证逐条上报的顺序稳定
func (c Competency) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
