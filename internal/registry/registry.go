package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrModelNotFound = errors.New("model not found")

// TemporalCaps 视频模型的时域能力
type TemporalCaps struct {
	SupportedDurations []int `yaml:"supported_durations" json:"supported_durations,omitempty"`
	MaxOutputSeconds   int   `yaml:"max_output_seconds" json:"max_output_seconds"`
}

// ModelCaps 单个模型的能力元数据，只读
type ModelCaps struct {
	ID           string        `yaml:"id" json:"id"`
	Name         string        `yaml:"name" json:"name"`
	Kind         string        `yaml:"kind" json:"kind"` // image | video
	IsDefault    bool          `yaml:"is_default" json:"is_default"`
	Resolutions  []string      `yaml:"resolutions" json:"resolutions"`
	AspectRatios []string      `yaml:"aspect_ratios" json:"aspect_ratios"`
	ImageToImage bool          `yaml:"image_to_image" json:"image_to_image"`
	Temporal     *TemporalCaps `yaml:"temporal" json:"temporal,omitempty"`
}

// MaxClipSeconds 单次输出的最长秒数；非视频模型返回0
func (m *ModelCaps) MaxClipSeconds() int {
	if m.Temporal == nil {
		return 0
	}
	if m.Temporal.MaxOutputSeconds > 0 {
		return m.Temporal.MaxOutputSeconds
	}
	max := 0
	for _, d := range m.Temporal.SupportedDurations {
		if d > max {
			max = d
		}
	}
	return max
}

// SupportsDuration 时长是否在支持集合内；未声明集合时按上限判断
func (m *ModelCaps) SupportsDuration(seconds int) bool {
	if m.Temporal == nil {
		return false
	}
	if len(m.Temporal.SupportedDurations) == 0 {
		return seconds > 0 && seconds <= m.Temporal.MaxOutputSeconds
	}
	for _, d := range m.Temporal.SupportedDurations {
		if d == seconds {
			return true
		}
	}
	return false
}

func (m *ModelCaps) SupportsResolution(res string) bool {
	for _, r := range m.Resolutions {
		if strings.EqualFold(r, res) {
			return true
		}
	}
	return false
}

func (m *ModelCaps) SupportsAspectRatio(ar string) bool {
	for _, a := range m.AspectRatios {
		if a == ar {
			return true
		}
	}
	return false
}

// ClosestDuration 返回支持集合中与请求值最接近的时长
func (m *ModelCaps) ClosestDuration(seconds int) int {
	if m.Temporal == nil {
		return seconds
	}
	candidates := m.Temporal.SupportedDurations
	if len(candidates) == 0 {
		if seconds > m.Temporal.MaxOutputSeconds {
			return m.Temporal.MaxOutputSeconds
		}
		return seconds
	}
	best := candidates[0]
	for _, d := range candidates[1:] {
		if abs(d-seconds) < abs(best-seconds) {
			best = d
		}
	}
	return best
}

// ClosestResolution 数值距离启发式：把 "720p"/"1080x1920" 解析成像素高度比较
func (m *ModelCaps) ClosestResolution(res string) string {
	if len(m.Resolutions) == 0 {
		return res
	}
	want := resolutionHeight(res)
	best := m.Resolutions[0]
	bestDist := abs(resolutionHeight(best) - want)
	for _, r := range m.Resolutions[1:] {
		if d := abs(resolutionHeight(r) - want); d < bestDist {
			best = r
			bestDist = d
		}
	}
	return best
}

// resolutionHeight 从 "720p"、"1080x1920" 之类的标记里取出数值高度
func resolutionHeight(res string) int {
	res = strings.ToLower(strings.TrimSpace(res))
	if idx := strings.Index(res, "x"); idx > 0 {
		res = res[idx+1:]
	}
	res = strings.TrimSuffix(res, "p")
	if res == "4k" {
		return 2160
	}
	n, err := strconv.Atoi(res)
	if err != nil {
		return 0
	}
	return n
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Registry 模型能力清单，只读数据
type Registry struct {
	models []ModelCaps
}

type registryFile struct {
	Models []ModelCaps `yaml:"models"`
}

// Load 从 yaml 文件加载能力清单
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read models file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse models file: %w", err)
	}

	if len(file.Models) == 0 {
		return nil, fmt.Errorf("models file %s contains no models", path)
	}

	return New(file.Models), nil
}

// New 从给定的模型列表构建清单（测试用）
func New(models []ModelCaps) *Registry {
	return &Registry{models: models}
}

// Lookup 按引用解析模型：精确ID → 精确名称（不区分大小写）→ 子串包含
func (r *Registry) Lookup(ref string) (*ModelCaps, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrModelNotFound
	}

	for i := range r.models {
		if r.models[i].ID == ref {
			return &r.models[i], nil
		}
	}

	for i := range r.models {
		if strings.EqualFold(r.models[i].Name, ref) {
			return &r.models[i], nil
		}
	}

	lower := strings.ToLower(ref)
	for i := range r.models {
		if strings.Contains(strings.ToLower(r.models[i].Name), lower) ||
			strings.Contains(strings.ToLower(r.models[i].ID), lower) {
			return &r.models[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrModelNotFound, ref)
}

// DefaultModel 指定类别的默认模型
func (r *Registry) DefaultModel(kind string) *ModelCaps {
	for i := range r.models {
		if r.models[i].Kind == kind && r.models[i].IsDefault {
			return &r.models[i]
		}
	}
	for i := range r.models {
		if r.models[i].Kind == kind {
			return &r.models[i]
		}
	}
	return nil
}

// DefaultImageToImageModel 默认的图生图模型。
// 即便全局默认是文生图模型，图生图请求也必须落到这里。
func (r *Registry) DefaultImageToImageModel() *ModelCaps {
	for i := range r.models {
		if r.models[i].Kind == "image" && r.models[i].ImageToImage && r.models[i].IsDefault {
			return &r.models[i]
		}
	}
	for i := range r.models {
		if r.models[i].Kind == "image" && r.models[i].ImageToImage {
			return &r.models[i]
		}
	}
	return nil
}

// Models 全部模型（按名称排序的副本），用于向用户列举可选项
func (r *Registry) Models() []ModelCaps {
	out := append([]ModelCaps(nil), r.models...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ModelNames 指定类别的模型名称列表
func (r *Registry) ModelNames(kind string) []string {
	var names []string
	for _, m := range r.Models() {
		if kind == "" || m.Kind == kind {
			names = append(names, m.Name)
		}
	}
	return names
}
