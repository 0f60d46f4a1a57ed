package engine

import "fmt"

type ResourceLoadError struct {
	Path string
}

func (e *ResourceLoadError) Error() string {
	return fmt.Sprintf("failed to load resource %s", e.Path)
}

type ResourceCastError struct {
	Path   string
	Target string
}

func (e *ResourceCastError) Error() string {
	return fmt.Sprintf("failed to cast resource %s to %s", e.Path, e.Target)
}

type ResourceInstantiateError struct {
	Path string
}

func (e *ResourceInstantiateError) Error() string {
	return fmt.Sprintf("failed to instantiate resource %s", e.Path)
}
