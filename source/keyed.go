package source

import (
	"fmt"
	"strconv"

	"github.com/rushteam/pairfeed/feature"
	"github.com/rushteam/pairfeed/pkg/conv"
)

// FeatureSpec 描述从原始实体属性中取哪些特征。
type FeatureSpec struct {
	// Categorical 类别特征名，每个特征独立编码
	Categorical []string `yaml:"categorical" koanf:"categorical"`
	// Numerical 数值特征名，按顺序拼成数值特征矩阵的一行；缺失值记为 0
	Numerical []string `yaml:"numerical" koanf:"numerical"`
	// NumKey 数值特征矩阵的键名，空时使用 feature.DefaultNumKey
	NumKey string `yaml:"num_key" koanf:"num_key"`
}

// Empty 报告是否没有声明任何特征。
func (s FeatureSpec) Empty() bool {
	return len(s.Categorical) == 0 && len(s.Numerical) == 0
}

// keyedFromValues 把逐实体的属性（map 形式）转成 KeyedTable。
// 类别特征缺失时记为空字符串类别。
func keyedFromValues(entity feature.Entity, keys []string, rows []map[string]any, spec FeatureSpec) (*feature.KeyedTable, error) {
	if len(keys) != len(rows) {
		return nil, fmt.Errorf("source: %d keys but %d rows", len(keys), len(rows))
	}
	kt := &feature.KeyedTable{
		Keys:    keys,
		Columns: append([]string(nil), spec.Categorical...),
		Codes:   make([][]int32, len(spec.Categorical)),
	}
	for c, name := range spec.Categorical {
		vals := make([]string, len(rows))
		for r, row := range rows {
			vals[r] = categoryString(row[name])
		}
		kt.Codes[c] = encodeColumn(vals)
	}

	if len(spec.Numerical) > 0 {
		kt.NumKey = spec.NumKey
		if kt.NumKey == "" {
			kt.NumKey = feature.DefaultNumKey(entity)
		}
		kt.Num = make([][]float32, len(rows))
		for r, row := range rows {
			vec := make([]float32, len(spec.Numerical))
			for d, name := range spec.Numerical {
				v, present := row[name]
				if !present {
					continue
				}
				f, ok := conv.ToFloat64(v)
				if !ok {
					return nil, fmt.Errorf("source: %s %q feature %q: %v is not numeric", entity, keys[r], name, v)
				}
				vec[d] = float32(f)
			}
			kt.Num[r] = vec
		}
	}
	return kt, nil
}

// categoryString 把类别取值统一成字符串。
func categoryString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
