package x2apic

import "github.com/tinyrange/vlapic/internal/vmexit"

type nopWindow struct{}

func (nopWindow) IsOpen() bool    { return false }
func (nopWindow) EnableExiting()  {}
func (nopWindow) DisableExiting() {}
func (nopWindow) Inject(uint8)    {}

type nopRegistrar struct{}

func (nopRegistrar) AddInterruptWindowHandler(vmexit.Handler) error { return nil }
