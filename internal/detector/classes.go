package detector

import "fmt"

// The joint defect classes the inspection model is trained on.
const (
	ClassFiredWedgeBare = iota
	ClassFiredWedgeCovered
	ClassHammerWedgeBare
	ClassHammerWedgeCovered
)

// classNames maps model class IDs to the defect labels used in records and
// reports.
var classNames = map[int]string{
	ClassFiredWedgeBare:     "1-1A-Fired Wedge Joint-BARE",
	ClassFiredWedgeCovered:  "1-1B-Fired Wedge Joint-COVERED",
	ClassHammerWedgeBare:    "2-2A-Hammer Driven Wedge Joint-BARE",
	ClassHammerWedgeCovered: "2-2B-Hammer Driven Wedge Joint-COVERED",
}

// ClassName returns the label for a class ID, or a generated name for IDs
// the class table does not know.
func ClassName(classID int) string {
	if name, ok := classNames[classID]; ok {
		return name
	}
	return fmt.Sprintf("Class_%d", classID)
}

// ClassIDs returns the known class IDs in ascending order.
func ClassIDs() []int {
	return []int{
		ClassFiredWedgeBare,
		ClassFiredWedgeCovered,
		ClassHammerWedgeBare,
		ClassHammerWedgeCovered,
	}
}
