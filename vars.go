package jsbridge

import (
	"fmt"

	"github.com/cryguy/jsbridge/internal/codec"
)

// GetVar returns the value of the global variable name. Reading an absent
// variable is an engine error.
func (in *Interp) GetVar(name string) (any, error) {
	if err := in.ownerOnly("getvar"); err != nil {
		return nil, err
	}
	return in.run("getvar", "__bridge.getVar("+codec.Literal(name)+")")
}

// SetVar assigns value to the global variable name and returns the value
// as the engine stored it.
func (in *Interp) SetVar(name string, value any) (any, error) {
	if err := in.ownerOnly("setvar"); err != nil {
		return nil, err
	}
	v, err := in.codec.FromHost(value)
	if err != nil {
		return nil, fmt.Errorf("setvar: %w", err)
	}
	return in.run("setvar", fmt.Sprintf("__bridge.setVar(%s, %s)",
		codec.Literal(name), codec.Literal(codec.Marshal(v))))
}

// UnsetVar deletes the global variable name.
func (in *Interp) UnsetVar(name string) error {
	if err := in.ownerOnly("unsetvar"); err != nil {
		return err
	}
	_, err := in.run("unsetvar", "__bridge.unsetVar("+codec.Literal(name)+")")
	return err
}

// GetElement returns element key of the object held by the global
// variable name.
func (in *Interp) GetElement(name, key string) (any, error) {
	if err := in.ownerOnly("getelement"); err != nil {
		return nil, err
	}
	return in.run("getelement", fmt.Sprintf("__bridge.getElement(%s, %s)",
		codec.Literal(name), codec.Literal(key)))
}

// SetElement assigns element key of the object held by name, creating the
// object when the variable is absent.
func (in *Interp) SetElement(name, key string, value any) (any, error) {
	if err := in.ownerOnly("setelement"); err != nil {
		return nil, err
	}
	v, err := in.codec.FromHost(value)
	if err != nil {
		return nil, fmt.Errorf("setelement: %w", err)
	}
	return in.run("setelement", fmt.Sprintf("__bridge.setElement(%s, %s, %s)",
		codec.Literal(name), codec.Literal(key), codec.Literal(codec.Marshal(v))))
}

// UnsetElement deletes element key of the object held by name.
func (in *Interp) UnsetElement(name, key string) error {
	if err := in.ownerOnly("unsetelement"); err != nil {
		return err
	}
	_, err := in.run("unsetelement", fmt.Sprintf("__bridge.unsetElement(%s, %s)",
		codec.Literal(name), codec.Literal(key)))
	return err
}
