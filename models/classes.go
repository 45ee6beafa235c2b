package models

import "github.com/pkg/errors"

// ClassSet is the ordered list of foreground class names of one dataset. YOLACT class
// indices are 0-based and exclude background, so index i names ClassSet[i].
type ClassSet []string

// COCOClasses are the 80 COCO foreground classes.
var COCOClasses = ClassSet{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// PascalVOCClasses are the 20 Pascal VOC foreground classes.
var PascalVOCClasses = ClassSet{
	"aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car", "cat", "chair", "cow",
	"diningtable", "dog", "horse", "motorbike", "person", "pottedplant", "sheep", "sofa",
	"train", "tvmonitor",
}

// Name returns the name of a 0-based foreground class.
//
// Arguments:
//   - class: The class index reported by a detection.
//
// Returns:
//   - string: The class name.
//   - error: If class is out of range.
func (s ClassSet) Name(class int) (string, error) {
	if class < 0 || class >= len(s) {
		return "", errors.Errorf("class %d out of range [0, %d)", class, len(s))
	}
	return s[class], nil
}

// Index returns the 0-based foreground index of name, or -1 if the set has no such class.
func (s ClassSet) Index(name string) int {
	for i, n := range s {
		if n == name {
			return i
		}
	}
	return -1
}

// Classes returns the class set of a dataset family.
func Classes(family ModelFamily) (ClassSet, error) {
	switch family {
	case ModelFamilyCOCO:
		return COCOClasses, nil
	case ModelFamilyVOC:
		return PascalVOCClasses, nil
	default:
		return nil, errors.Errorf("unknown model family %q", family)
	}
}
