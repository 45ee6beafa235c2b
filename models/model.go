// Package models - Dataset label sets for YOLACT class indices.
package models

// ModelFamily is the dataset a network was trained on.
type ModelFamily string

const (
	// ModelFamilyCOCO is the 80-class COCO dataset.
	ModelFamilyCOCO ModelFamily = "coco"
	// ModelFamilyVOC is the 20-class Pascal VOC dataset.
	ModelFamilyVOC ModelFamily = "voc"
)
