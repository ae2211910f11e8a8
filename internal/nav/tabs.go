package nav

import "strings"

// Tab is a dashboard destination.
type Tab struct {
	Key   string
	Title string
	Path  string
}

var tabs = []Tab{
	{Key: "DASHBOARD", Title: "Dashboard", Path: "/"},
	{Key: "STUDENTS", Title: "Students", Path: "/students"},
	{Key: "TEACHERS", Title: "Teachers", Path: "/teachers"},
	{Key: "COURSES", Title: "Courses", Path: "/courses"},
	{Key: "FINANCE", Title: "Finance", Path: "/finance"},
	{Key: "AI_ADVISOR", Title: "AI Advisor", Path: "/advisor"},
}

// Tabs returns the known destinations in menu order.
func Tabs() []Tab {
	return append([]Tab(nil), tabs...)
}

func Lookup(key string) (Tab, bool) {
	for _, t := range tabs {
		if t.Key == key {
			return t, true
		}
	}
	return Tab{}, false
}

// Label is the button caption for a directive key, e.g. "Go to AI ADVISOR".
func Label(key string) string {
	return "Go to " + strings.Replace(key, "_", " ", 1)
}

// URL joins a dashboard base URL with the tab's route. Unknown keys resolve
// to the base URL.
func URL(base, key string) string {
	base = strings.TrimRight(base, "/")
	if t, ok := Lookup(key); ok && t.Path != "/" {
		return base + t.Path
	}
	return base + "/"
}
