package proptree

import "testing"

// leaf is a minimal Container backing a couple of scalar fields and one
// array field, used to exercise Access without pulling in a real
// behaviour/device type.
type leaf struct {
	name  string
	count int
	items []string
	dirty bool
}

func (l *leaf) Descriptors() []Descriptor {
	return []Descriptor{
		{Name: "name", Type: TString},
		{Name: "items", Type: TString, IsArray: true},
	}
}

func (l *leaf) ArrayLength(d Descriptor) int {
	if d.Name == "items" {
		return len(l.items)
	}
	return 0
}

func (l *leaf) AccessField(write bool, value any, d Descriptor, idx int) (any, error) {
	switch d.Name {
	case "name":
		if write {
			s, ok := value.(string)
			if !ok {
				return nil, TypeMismatch("name")
			}
			l.name = s
			return nil, nil
		}
		return l.name, nil
	case "items":
		if err := OutOfRangeFor("items", idx, len(l.items)); err != nil {
			return nil, err
		}
		if write {
			s, ok := value.(string)
			if !ok {
				return nil, TypeMismatch("items")
			}
			l.items[idx] = s
			return nil, nil
		}
		return l.items[idx], nil
	}
	return nil, errUnknown(d.Name)
}

func (l *leaf) GetContainer(d Descriptor, idx int) (Container, error) {
	return nil, errUnknown(d.Name)
}

func (l *leaf) WrittenProperty(d Descriptor, idx int, sub Container) { l.dirty = true }

func TestAccessScalarReadWrite(t *testing.T) {
	l := &leaf{name: "x"}
	v, err := Access(l, false, nil, "name", 0, 0)
	if err != nil || v != "x" {
		t.Fatalf("read name = %v, %v", v, err)
	}
	if _, err := Access(l, true, "y", "name", 0, 0); err != nil {
		t.Fatalf("write name: %v", err)
	}
	if l.name != "y" {
		t.Fatalf("name not updated: %s", l.name)
	}
}

func TestAccessUnknownName(t *testing.T) {
	l := &leaf{}
	_, err := Access(l, false, nil, "bogus", 0, 0)
	pe, ok := err.(*Error)
	if !ok || pe.Code != CodeUnknownName {
		t.Fatalf("expected 501, got %v", err)
	}
}

func TestAccessArraySize(t *testing.T) {
	l := &leaf{items: []string{"a", "b", "c"}}
	v, err := Access(l, false, nil, "items", ArraySize, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.(int) != 3 {
		t.Fatalf("ArraySize = %v, want 3", v)
	}
}

func TestAccessArrayRangeStopsAtOutOfRange(t *testing.T) {
	l := &leaf{items: []string{"a", "b"}}
	v, err := Access(l, false, nil, "items", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	got := v.([]any)
	if len(got) != 2 {
		t.Fatalf("ranged read = %v, want 2 elements", got)
	}
}

func TestAccessArrayOutOfRangeSingle(t *testing.T) {
	l := &leaf{items: []string{"a"}}
	_, err := Access(l, false, nil, "items", 5, 0)
	if !IsOutOfRange(err) {
		t.Fatalf("expected out-of-range, got %v", err)
	}
}

func TestAccessStarReadsAllFields(t *testing.T) {
	l := &leaf{name: "x", items: []string{"a"}}
	v, err := Access(l, false, nil, "*", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	m := v.(map[string]any)
	if m["name"] != "x" {
		t.Fatalf("star read missing name: %v", m)
	}
}

// proxyParent/childObj exercise the object/proxy pass-through and the
// writtenProperty notification.
type childObj struct{ v int }

func (c *childObj) Descriptors() []Descriptor { return []Descriptor{{Name: "v", Type: TInt32}} }
func (c *childObj) ArrayLength(Descriptor) int { return 0 }
func (c *childObj) AccessField(write bool, value any, d Descriptor, idx int) (any, error) {
	if write {
		c.v = value.(int)
		return nil, nil
	}
	return c.v, nil
}
func (c *childObj) GetContainer(Descriptor, int) (Container, error) { return nil, errUnknown("v") }
func (c *childObj) WrittenProperty(Descriptor, int, Container)      {}

type parent struct {
	child    childObj
	notified bool
}

func (p *parent) Descriptors() []Descriptor {
	return []Descriptor{{Name: "child", Type: TObject}}
}
func (p *parent) ArrayLength(Descriptor) int { return 0 }
func (p *parent) AccessField(write bool, value any, d Descriptor, idx int) (any, error) {
	return nil, errUnknown(d.Name)
}
func (p *parent) GetContainer(d Descriptor, idx int) (Container, error) {
	if d.Name == "child" {
		return &p.child, nil
	}
	return nil, errUnknown(d.Name)
}
func (p *parent) WrittenProperty(d Descriptor, idx int, sub Container) { p.notified = true }

func TestAccessObjectPassThroughAndNotification(t *testing.T) {
	p := &parent{}
	if _, err := Access(p, true, map[string]any{"v": 7}, "child", 0, 0); err != nil {
		t.Fatal(err)
	}
	if p.child.v != 7 {
		t.Fatalf("child.v = %d, want 7", p.child.v)
	}
	if !p.notified {
		t.Fatal("expected WrittenProperty notification on parent")
	}
}
