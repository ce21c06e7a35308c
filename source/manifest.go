package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/pairfeed/dataset"
	"github.com/rushteam/pairfeed/feature"
	"github.com/rushteam/pairfeed/pkg/dsl"
)

// Manifest 是一份自包含的数据集描述（YAML / JSON），用于小规模数据、测试与命令行工具。
//
//	filter: "x.score >= 4.0"
//	context_columns: [hour]
//	interactions:
//	  - {user: u1, item: i1, score: 5, context: {hour: "21"}}
//	users:
//	  features: {categorical: [age], numerical: [ctr]}
//	  rows:
//	    u1: {age: "18-24", ctr: 0.12}
type Manifest struct {
	Filter         string                `yaml:"filter" json:"filter"`
	ContextColumns []string              `yaml:"context_columns" json:"context_columns"`
	Interactions   []ManifestInteraction `yaml:"interactions" json:"interactions"`
	Users          EntityManifest        `yaml:"users" json:"users"`
	Items          EntityManifest        `yaml:"items" json:"items"`
}

// ManifestInteraction 是清单中的一条交互。
type ManifestInteraction struct {
	User    string            `yaml:"user" json:"user"`
	Item    string            `yaml:"item" json:"item"`
	Score   float64           `yaml:"score" json:"score"`
	Source  string            `yaml:"source" json:"source"`
	Context map[string]string `yaml:"context" json:"context"`
	Attrs   map[string]any    `yaml:"attrs" json:"attrs"`
}

// EntityManifest 是一类实体的特征声明与逐实体取值。
type EntityManifest struct {
	Features FeatureSpec               `yaml:"features" json:"features"`
	Rows     map[string]map[string]any `yaml:"rows" json:"rows"`
}

// LoadManifest 从文件加载清单，.json 按 JSON 解析，其余按 YAML 解析。
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return &m, nil
	}
	return ParseManifest(data)
}

// ParseManifest 解析 YAML 清单。
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &m, nil
}

// Build 把清单编码成 Dataset。opts 追加在清单自身的设置之后。
func (m *Manifest) Build(opts ...BuilderOption) (*dataset.Dataset, error) {
	filter, err := dsl.Compile(m.Filter)
	if err != nil {
		return nil, fmt.Errorf("source: manifest filter: %w", err)
	}
	base := []BuilderOption{WithFilter(filter)}
	if len(m.ContextColumns) > 0 {
		base = append(base, WithContextColumns(m.ContextColumns...))
	}
	if kt, err := m.Users.keyed(feature.EntityUser); err != nil {
		return nil, err
	} else if kt != nil {
		base = append(base, WithUserFeatures(kt))
	}
	if kt, err := m.Items.keyed(feature.EntityItem); err != nil {
		return nil, err
	} else if kt != nil {
		base = append(base, WithItemFeatures(kt))
	}

	b := NewBuilder(append(base, opts...)...)
	for _, in := range m.Interactions {
		b.Add(Record{
			User:    in.User,
			Item:    in.Item,
			Score:   in.Score,
			Source:  in.Source,
			Context: in.Context,
			Attrs:   in.Attrs,
		})
	}
	return b.Build()
}

func (e EntityManifest) keyed(entity feature.Entity) (*feature.KeyedTable, error) {
	if e.Features.Empty() {
		return nil, nil
	}
	keys := make([]string, 0, len(e.Rows))
	for k := range e.Rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]map[string]any, len(keys))
	for i, k := range keys {
		rows[i] = e.Rows[k]
	}
	return keyedFromValues(entity, keys, rows, e.Features)
}
