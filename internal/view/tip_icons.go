package view

import (
	"html/template"
	"strings"
)

// TipStyle 是建议卡片的图标与配色。
type TipStyle struct {
	Key   string        `json:"key"`
	Color string        `json:"color"`
	Icon  template.HTML `json:"icon"`
}

type tipIconAsset struct {
	Key   string
	Color string
	SVG   string
}

var (
	tipIconDefinitions = []tipIconAsset{
		{Key: "breathing", Color: "sky", SVG: `<svg viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M17.7 7.7a2.5 2.5 0 1 1 1.8 4.3H2"/><path d="M9.6 4.6A2 2 0 1 1 11 8H2"/><path d="M12.6 19.4A2 2 0 1 0 14 16H2"/></svg>`},
		{Key: "sleep", Color: "lavender", SVG: `<svg viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M12 3a6 6 0 0 0 9 9 9 9 0 1 1-9-9Z"/></svg>`},
		{Key: "pomodoro", Color: "peach", SVG: `<svg viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><line x1="10" x2="14" y1="2" y2="2"/><line x1="12" x2="15" y1="14" y2="11"/><circle cx="12" cy="14" r="8"/></svg>`},
		{Key: "self-care", Color: "mint", SVG: `<svg viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M19 14c1.49-1.46 3-3.21 3-5.5A5.5 5.5 0 0 0 16.5 3c-1.76 0-3 .5-4.5 2-1.5-1.5-2.74-2-4.5-2A5.5 5.5 0 0 0 2 8.5c0 2.3 1.5 4.05 3 5.5l7 7Z"/></svg>`},
	}
	defaultTipIcon = tipIconAsset{Key: "great", Color: "mint", SVG: `<svg viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M15 14c.2-1 .7-1.7 1.5-2.5 1-.9 1.5-2.2 1.5-3.5A6 6 0 0 0 6 8c0 1 .2 2.2 1.5 3.5.7.7 1.3 1.5 1.5 2.5"/><path d="M9 18h6"/><path d="M10 22h4"/></svg>`}
	tipIconLookup  = func() map[string]tipIconAsset {
		lookup := make(map[string]tipIconAsset, len(tipIconDefinitions)+1)
		for _, icon := range tipIconDefinitions {
			lookup[icon.Key] = icon
		}
		lookup[defaultTipIcon.Key] = defaultTipIcon
		return lookup
	}()
)

// TipStyleFor 返回建议对应的图标，未知键使用默认灯泡图标。
func TipStyleFor(key string) TipStyle {
	normalized := strings.ToLower(strings.TrimSpace(key))
	asset, ok := tipIconLookup[normalized]
	if !ok {
		asset = defaultTipIcon
	}
	return TipStyle{Key: asset.Key, Color: asset.Color, Icon: template.HTML(asset.SVG)}
}
