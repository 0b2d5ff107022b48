package builtins

import (
	"bytes"
	"errors"
	"testing"

	rerrors "github.com/reactive-lang/reactive/internal/errors"
	"github.com/reactive-lang/reactive/internal/value"
	"go.uber.org/mock/gomock"
)

func TestStringRoundTrip(t *testing.T) {
	h := value.NewHeap()
	v := NewStringArray(h, "hi")
	s, ok := AsString(v, h)
	if !ok || s != "hi" {
		t.Fatalf("got (%q, %v), want (\"hi\", true)", s, ok)
	}
}

func TestAsStringRejectsMixedArray(t *testing.T) {
	h := value.NewHeap()
	id := h.AllocArray(2)
	obj, _ := h.Get(id)
	obj.Slots[0] = value.NewMutSlot(value.Char('a'))
	obj.Slots[1] = value.NewMutSlot(value.Int(1))
	if _, ok := AsString(value.HeapRef(id), h); ok {
		t.Error("expected AsString to reject an array with a non-Char element")
	}
}

func TestRenderKinds(t *testing.T) {
	h := value.NewHeap()
	layoutName := func(int) string { return "Point" }

	cases := []struct {
		v    value.Value
		want string
	}{
		{value.Int(42), "42"},
		{value.Char('z'), "z"},
		{value.Unit(), "0"},
	}
	for _, c := range cases {
		got, err := Render(c.v, h, layoutName)
		if err != nil || got != c.want {
			t.Errorf("Render(%v) = (%q, %v), want %q", c.v, got, err, c.want)
		}
	}

	arrID := h.AllocArray(3)
	got, err := Render(value.HeapRef(arrID), h, layoutName)
	if err != nil || got != "3" {
		t.Errorf("array render = (%q, %v), want \"3\"", got, err)
	}

	recID := h.AllocRecord(0, 1)
	got, err = Render(value.HeapRef(recID), h, layoutName)
	if err != nil || got != "<record Point>" {
		t.Errorf("record render = (%q, %v), want \"<record Point>\"", got, err)
	}
}

func TestPrintlnAppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	if err := Println(&buf, value.Int(7), value.NewHeap(), func(int) string { return "" }); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "7\n" {
		t.Errorf("got %q, want %q", buf.String(), "7\n")
	}
}

func TestAssert(t *testing.T) {
	h := value.NewHeap()
	if err := Assert(value.Int(1), h); err != nil {
		t.Errorf("truthy assert should not fail: %v", err)
	}
	err := Assert(value.Int(0), h)
	if err == nil {
		t.Fatal("expected AssertFailed for a falsy value")
	}
	var re *rerrors.RuntimeError
	if !errors.As(err, &re) || re.Kind != rerrors.AssertFailed {
		t.Errorf("got %v, want AssertFailed", err)
	}
}

func TestErrorBuiltin(t *testing.T) {
	err := Error("boom")
	var re *rerrors.RuntimeError
	if !errors.As(err, &re) || re.Kind != rerrors.UserError || re.Message != "boom" {
		t.Errorf("got %v, want UserError \"boom\"", err)
	}
}

func TestFileReadWriteViaMock(t *testing.T) {
	ctrl := gomock.NewController(t)
	fs := NewMockHostFS(ctrl)
	h := value.NewHeap()

	fs.EXPECT().WriteFile("out.txt", []byte("hello")).Return(nil)
	if FileWrite(fs, "out.txt", "hello").I != 1 {
		t.Error("expected FileWrite to report success")
	}

	fs.EXPECT().ReadFile("out.txt").Return([]byte("hello"), nil)
	v := FileRead(fs, h, "out.txt")
	s, ok := AsString(v, h)
	if !ok || s != "hello" {
		t.Errorf("got (%q, %v), want (\"hello\", true)", s, ok)
	}

	fs.EXPECT().ReadFile("missing.txt").Return(nil, errors.New("not found"))
	if FileRead(fs, h, "missing.txt").I != 0 {
		t.Error("expected FileRead to return Int(0) on failure")
	}

	fs.EXPECT().Exists("out.txt").Return(true)
	if FileExists(fs, "out.txt").I != 1 {
		t.Error("expected FileExists to report true as Int(1)")
	}

	fs.EXPECT().Remove("out.txt").Return(nil)
	if FileRemove(fs, "out.txt").I != 1 {
		t.Error("expected FileRemove to report success")
	}
}
