package domain

import (
	"time"
)

// ImageInfo carries per-photo metadata, parallel to PlantRecord.Images.
type ImageInfo struct {
	Reference  string `json:"path"`
	CapturedAt int64  `json:"timestamp,omitempty"`
	Date       string `json:"date,omitempty"`
	Memo       string `json:"memo,omitempty"`
}

// CareEvent is one watering or fertilizing entry, newest-first in its
// history.
type CareEvent struct {
	Date      string `json:"date"`
	Timestamp int64  `json:"timestamp"`
}

// HealthAnalysis is one saved health check, newest-first.
type HealthAnalysis struct {
	Text      string `json:"healthAnalysis"`
	ImagePath string `json:"imagePath,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// AIResult is the normalized species identification attached to a
// record. Degraded lookups keep the record usable and set Failed.
type AIResult struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score,omitempty"`
	CareTips   string  `json:"careTips,omitempty"`
	Model      string  `json:"model,omitempty"`
	Failed     bool    `json:"failed,omitempty"`
	FailReason string  `json:"failReason,omitempty"`
}

// PlantRecord is one plant in an owner's list. The whole list is the
// unit of remote persistence: one document per owner, overwritten as a
// whole on every mirror.
type PlantRecord struct {
	ID                  int64            `json:"id"`
	Name                string           `json:"name,omitempty"`
	Images              []string         `json:"images"`
	ImageInfos          []ImageInfo      `json:"imageInfos"`
	AIResult            *AIResult        `json:"aiResult,omitempty"`
	LastWateringDate    string           `json:"lastWateringDate,omitempty"`
	LastFertilizingDate string           `json:"lastFertilizingDate,omitempty"`
	WateringHistory     []CareEvent      `json:"wateringHistory,omitempty"`
	FertilizingHistory  []CareEvent      `json:"fertilizingHistory,omitempty"`
	HealthAnalyses      []HealthAnalysis `json:"healthAnalyses,omitempty"`
	CreateTime          int64            `json:"createTime"`

	// CreateDate is derived on read, never stored.
	CreateDate string `json:"createDate,omitempty"`
}

// Cover returns the record's cover image reference, index 0.
func (p *PlantRecord) Cover() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Repair rebuilds ImageInfos so that it stays parallel to Images.
// Existing entries are matched by reference where possible; missing
// entries are rebuilt from Images, surplus entries dropped.
func (p *PlantRecord) Repair() {
	if len(p.ImageInfos) == len(p.Images) {
		for i := range p.Images {
			p.ImageInfos[i].Reference = p.Images[i]
		}
		return
	}

	byRef := make(map[string]ImageInfo, len(p.ImageInfos))
	for _, info := range p.ImageInfos {
		if _, ok := byRef[info.Reference]; !ok {
			byRef[info.Reference] = info
		}
	}

	infos := make([]ImageInfo, len(p.Images))
	for i, img := range p.Images {
		if info, ok := byRef[img]; ok {
			infos[i] = info
		} else {
			infos[i] = ImageInfo{Reference: img}
		}
	}
	p.ImageInfos = infos
}

// ComputeCreateDate fills the derived display date.
func (p *PlantRecord) ComputeCreateDate() {
	if p.CreateTime == 0 {
		return
	}
	p.CreateDate = time.UnixMilli(p.CreateTime).Format("2006-01-02")
}

// TrimHistories caps the newest-first sequences, dropping the oldest
// entries from the tail.
func (p *PlantRecord) TrimHistories(maxEntries int) {
	if maxEntries <= 0 {
		return
	}
	if len(p.WateringHistory) > maxEntries {
		p.WateringHistory = p.WateringHistory[:maxEntries]
	}
	if len(p.FertilizingHistory) > maxEntries {
		p.FertilizingHistory = p.FertilizingHistory[:maxEntries]
	}
	if len(p.HealthAnalyses) > maxEntries {
		p.HealthAnalyses = p.HealthAnalyses[:maxEntries]
	}
}
