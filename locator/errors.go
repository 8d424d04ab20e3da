package locator

import "fmt"

// MissingClassError 没有找到集合类，且不允许回退到通用集合
type MissingClassError struct {
	Alias     string
	ClassName string
}

func (e *MissingClassError) Error() string {
	return fmt.Sprintf("Collection class for alias `%s` could not be found (looked up `%s`).", e.Alias, e.ClassName)
}
