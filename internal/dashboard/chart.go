package dashboard

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"servicecalls/internal/core"
)

const (
	MainChartTopN = 15
	Sub1ChartTopN = 20

	NoCategoryLabel    = "No category"
	NoSubCategoryLabel = "No subcategory"

	DefaultBarColor   = "#6AA9FF"
	HighlightBarColor = "#73C7A6"
	NeutralBarColor   = "#A9B4C2"

	baseAlpha      = 0.55
	highlightAlpha = 0.70
	fadedAlpha     = 0.25
)

// Palette is the pastel color set category names hash into.
var Palette = [10]string{
	"#6AA9FF", "#73C7A6", "#FFC27A", "#C6A5FF", "#FF9DB5",
	"#7BC7D6", "#B9C27A", "#A9B4C2", "#FFB3A1", "#8BA0FF",
}

type (
	GroupCount struct {
		Label string
		Count int
	}

	// ChartDataset is what a bar chart renderer consumes.
	ChartDataset struct {
		Labels []string `json:"labels"`
		Values []int    `json:"values"`
		Colors []string `json:"colors"`
		YMax   int      `json:"yMax"`
	}

	Charts struct {
		MainCategory ChartDataset `json:"mainCategory"`
		SubCategory1 ChartDataset `json:"subCategory1"`
	}

	// ChipStyle colors a selected-category chip.
	ChipStyle struct {
		Background string `json:"background"`
		Border     string `json:"border"`
		Color      string `json:"color"`
	}

	// CategoryStyle is how one main-category option is drawn in the picker.
	CategoryStyle struct {
		Name string    `json:"name"`
		Dot  string    `json:"dot"`
		Chip ChipStyle `json:"chip"`
	}
)

// GroupCounts counts records per trimmed key, in first-seen order. Empty keys
// are counted under emptyLabel.
func GroupCounts(records []core.ServiceCallRecord, key func(core.ServiceCallRecord) string, emptyLabel string) []GroupCount {
	index := make(map[string]int)
	groups := make([]GroupCount, 0)
	for _, r := range records {
		k := core.Norm(key(r))
		if k == "" {
			k = emptyLabel
		}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, GroupCount{Label: k})
		}
		groups[i].Count++
	}
	return groups
}

// TopN returns the n largest groups, ties kept in their incoming order.
// The input is not modified.
func TopN(groups []GroupCount, n int) []GroupCount {
	sorted := append([]GroupCount(nil), groups...)
	sortByCountDesc(sorted)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func sortByCountDesc(groups []GroupCount) {
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Count > groups[j].Count })
}

// PaletteIndex hashes the trimmed name with an unsigned 32-bit base-31
// polynomial over its UTF-16 code units.
func PaletteIndex(name string) int {
	var h uint32
	for _, c := range utf16.Encode([]rune(core.Norm(name))) {
		h = h*31 + uint32(c)
	}
	return int(h % uint32(len(Palette)))
}

// ColorForCategory maps a category name to its palette color. The mapping is
// stable across recomputes and across charts.
func ColorForCategory(name string) string {
	return Palette[PaletteIndex(name)]
}

// BarStyle picks a bar's fill. With no selection every bar gets base; with a
// selection, selected labels are highlighted and the rest faded.
func BarStyle(label string, selected core.Set, base string) string {
	if len(selected) == 0 {
		return HexToRGBA(base, baseAlpha)
	}
	if selected.Has(label) {
		return HexToRGBA(HighlightBarColor, highlightAlpha)
	}
	return HexToRGBA(NeutralBarColor, fadedAlpha)
}

// YAxisMax leaves exactly one unit of headroom above the tallest bar.
func YAxisMax(values []int) int {
	m := 0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m + 1
}

// MainCategoryChart projects the fully filtered records by main category,
// each bar in its category color.
func MainCategoryChart(filtered []core.ServiceCallRecord) ChartDataset {
	groups := TopN(GroupCounts(filtered, func(r core.ServiceCallRecord) string { return r.MainCategoryName }, NoCategoryLabel), MainChartTopN)
	ds := newDataset(groups)
	for i, label := range ds.Labels {
		ds.Colors[i] = BarStyle(label, nil, ColorForCategory(label))
	}
	return ds
}

// SubCategory1Chart projects the date+main scope by subcategory 1 so every
// option under the chosen main categories stays visible; selected
// subcategories are highlighted.
func SubCategory1Chart(dateMain []core.ServiceCallRecord, selected []string) ChartDataset {
	groups := TopN(GroupCounts(dateMain, func(r core.ServiceCallRecord) string { return r.SubCategory1Name }, NoSubCategoryLabel), Sub1ChartTopN)
	ds := newDataset(groups)
	sel := core.NewSet(selected)
	for i, label := range ds.Labels {
		ds.Colors[i] = BarStyle(label, sel, DefaultBarColor)
	}
	return ds
}

func newDataset(groups []GroupCount) ChartDataset {
	ds := ChartDataset{
		Labels: make([]string, len(groups)),
		Values: make([]int, len(groups)),
		Colors: make([]string, len(groups)),
	}
	for i, g := range groups {
		ds.Labels[i] = g.Label
		ds.Values[i] = g.Count
	}
	ds.YMax = YAxisMax(ds.Values)
	return ds
}

// DotColor is the option-list marker color of a category.
func DotColor(name string) string {
	return HexToRGBA(ColorForCategory(name), 0.8)
}

// ChipStyleFor is the soft pastel look of a selected category chip.
func ChipStyleFor(name string) ChipStyle {
	c := ColorForCategory(name)
	return ChipStyle{
		Background: HexToRGBA(c, 0.18),
		Border:     "1px solid " + HexToRGBA(c, 0.35),
		Color:      c,
	}
}

// CategoryStyles pairs every option with its dot color and chip style.
func CategoryStyles(options []string) []CategoryStyle {
	out := make([]CategoryStyle, len(options))
	for i, name := range options {
		out[i] = CategoryStyle{Name: name, Dot: DotColor(name), Chip: ChipStyleFor(name)}
	}
	return out
}

// HexToRGBA converts "#RRGGBB" to a CSS rgba() string. Malformed input
// channels decode as 0.
func HexToRGBA(hex string, alpha float64) string {
	h := strings.TrimPrefix(hex, "#")
	channel := func(from int) string {
		if len(h) < from+2 {
			return "0"
		}
		v, err := strconv.ParseUint(h[from:from+2], 16, 8)
		if err != nil {
			return "0"
		}
		return strconv.FormatUint(v, 10)
	}
	return "rgba(" + channel(0) + "," + channel(2) + "," + channel(4) + "," + strconv.FormatFloat(alpha, 'f', -1, 64) + ")"
}
