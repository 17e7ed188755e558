package detector

import "strconv"

// classNames is the fixed mapping from model class ids to display labels.
var classNames = map[int]string{
	0: "Impacted",
	1: "Caries",
	2: "Peri Lesion",
	3: "Deep Caries",
}

// ClassName returns the display label for a class id. Unmapped ids render
// their numeric value, never an error.
func ClassName(classID int) string {
	if name, ok := classNames[classID]; ok {
		return name
	}
	return strconv.Itoa(classID)
}
