package models

import "strings"

// Department is the fixed partition an issue and an officer both belong to.
type Department string

const (
	DeptRoads       Department = "roads"
	DeptElectricity Department = "electricity"
	DeptWater       Department = "water"
	DeptSanitation  Department = "sanitation"
	DeptParks       Department = "parks"
	DeptBuilding    Department = "building"
	DeptTraffic     Department = "traffic"
	DeptGeneral     Department = "general"
)

var departments = map[Department]bool{
	DeptRoads: true, DeptElectricity: true, DeptWater: true, DeptSanitation: true,
	DeptParks: true, DeptBuilding: true, DeptTraffic: true, DeptGeneral: true,
}

// ParseDepartment validates a raw department name.
func ParseDepartment(s string) (Department, bool) {
	d := Department(strings.ToLower(strings.TrimSpace(s)))
	return d, departments[d]
}

func (d Department) Valid() bool { return departments[d] }

// Departments lists every department in a stable order.
func Departments() []Department {
	return []Department{DeptRoads, DeptElectricity, DeptWater, DeptSanitation, DeptParks, DeptBuilding, DeptTraffic, DeptGeneral}
}
