package model

import "testing"

func TestSyslogRecordToDeliveryUsesSentinelHost(t *testing.T) {
	rec := SyslogRecord{Message: "link flap"}
	d := rec.ToDelivery()
	v, ok := d.Accessor(UnknownSyslogHost, SyntheticSyslogMetric)
	if !ok {
		t.Fatalf("expected synthetic metric under sentinel host")
	}
	s, _ := v.AsString()
	if s != "link flap" {
		t.Fatalf("expected message preserved, got %q", s)
	}
}

func TestSyslogRecordToDeliveryUsesSource(t *testing.T) {
	rec := SyslogRecord{Source: "10.0.0.1", Message: "down"}
	d := rec.ToDelivery()
	if !d.HasDevice("10.0.0.1") {
		t.Fatalf("expected device keyed by source hostname")
	}
}

func TestDeliveryAccessorMissingDevice(t *testing.T) {
	d := NewDelivery()
	_, ok := d.Accessor("missing", "metric")
	if ok {
		t.Fatalf("expected accessor miss for absent device")
	}
}
