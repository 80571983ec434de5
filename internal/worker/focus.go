package worker

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFocusName names the focus built from KPI_MAIN_CATEGORIES and
// KPI_SUB_CATEGORIES when no focus file is configured.
const DefaultFocusName = "default"

// Focus is one category selection the worker reports KPIs for. Empty lists
// mean no filter on that level.
type Focus struct {
	Name           string   `yaml:"name"`
	MainCategories []string `yaml:"main_categories"`
	SubCategories  []string `yaml:"sub_categories"`
}

type focusFile struct {
	Focuses []Focus `yaml:"focuses"`
}

// LoadFocuses reads the focus file at path. With no path it returns a single
// focus built from the two lists.
//
//	focuses:
//	  - name: hardware
//	    main_categories: [Hardware]
//	  - name: printers
//	    main_categories: [Hardware]
//	    sub_categories: [Printer, Scanner]
func LoadFocuses(path string, mains, subs []string) ([]Focus, error) {
	if path == "" {
		return []Focus{{Name: DefaultFocusName, MainCategories: mains, SubCategories: subs}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read focus file: %w", err)
	}
	var file focusFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse focus file %s: %w", path, err)
	}
	if len(file.Focuses) == 0 {
		return nil, fmt.Errorf("focus file %s defines no focuses", path)
	}

	seen := make(map[string]bool, len(file.Focuses))
	for i := range file.Focuses {
		f := &file.Focuses[i]
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return nil, fmt.Errorf("focus %d in %s has no name", i+1, path)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate focus %q in %s", f.Name, path)
		}
		seen[f.Name] = true
	}
	return file.Focuses, nil
}
