package xerrors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	if err := Wrap(nil, "context"); err != nil {
		t.Errorf("Wrap(nil) = %v，期望 nil", err)
	}

	base := errors.New("base error")
	wrapped := Wrap(base, "context")
	if wrapped.Error() != "context: base error" {
		t.Errorf("Wrap(err).Error() = %q，期望 %q", wrapped.Error(), "context: base error")
	}
	if !errors.Is(wrapped, base) {
		t.Error("errors.Is(wrapped, base) = false，期望 true")
	}
}

func TestWrapf(t *testing.T) {
	if err := Wrapf(nil, "template %d", 3); err != nil {
		t.Errorf("Wrapf(nil) = %v，期望 nil", err)
	}

	wrapped := Wrapf(ErrNotFound, "template %q", "order")
	if wrapped.Error() != `template "order": not found` {
		t.Errorf("Wrapf(err).Error() = %q", wrapped.Error())
	}
	if !Is(wrapped, ErrNotFound) {
		t.Error("Is(wrapped, ErrNotFound) = false，期望 true")
	}
}

func TestWithCode(t *testing.T) {
	if err := WithCode(nil, "CODE"); err != nil {
		t.Errorf("WithCode(nil) = %v，期望 nil", err)
	}

	coded := WithCode(ErrInvalidInput, "bad_layout")
	if coded.Error() != "[bad_layout] invalid input" {
		t.Errorf("WithCode(err).Error() = %q", coded.Error())
	}
	if code := GetCode(coded); code != "bad_layout" {
		t.Errorf("GetCode(coded) = %q，期望 %q", code, "bad_layout")
	}

	wrapped := Wrap(coded, "compile failed")
	if code := GetCode(wrapped); code != "bad_layout" {
		t.Errorf("GetCode(wrapped) = %q，期望 %q", code, "bad_layout")
	}
	if !Is(wrapped, ErrInvalidInput) {
		t.Error("Is(wrapped, ErrInvalidInput) = false，期望 true")
	}
	if GetCode(errors.New("plain")) != "" {
		t.Error("GetCode(plain) 应为空")
	}
}

func TestHasCode(t *testing.T) {
	inner := WithCode(errors.New("inner"), "inner_code")
	outer := WithCode(Wrap(inner, "ctx"), "outer_code")

	if !HasCode(outer, "outer_code") {
		t.Error("HasCode(outer, outer_code) = false")
	}
	if !HasCode(outer, "inner_code") {
		t.Error("HasCode(outer, inner_code) = false")
	}
	if HasCode(outer, "missing") {
		t.Error("HasCode(outer, missing) = true")
	}

	joined := Combine(errors.New("a"), inner)
	if !HasCode(joined, "inner_code") {
		t.Error("HasCode(multi, inner_code) = false")
	}
}

func TestMust(t *testing.T) {
	if v := Must(42, nil); v != 42 {
		t.Errorf("Must(42, nil) = %d，期望 42", v)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("Must(_, err) 未触发 panic")
		}
	}()
	Must(0, errors.New("error"))
}

func TestCombine(t *testing.T) {
	if err := Combine(); err != nil {
		t.Errorf("Combine() = %v，期望 nil", err)
	}
	if err := Combine(nil, nil); err != nil {
		t.Errorf("Combine(nil, nil) = %v，期望 nil", err)
	}

	err1 := errors.New("error 1")
	if err := Combine(nil, err1, nil); err != err1 {
		t.Errorf("Combine(nil, err1, nil) = %v，期望 %v", err, err1)
	}

	err2 := errors.New("error 2")
	combined := Combine(err1, err2)
	multi, ok := combined.(*MultiError)
	if !ok {
		t.Fatalf("Combine(err1, err2) 类型 = %T，期望 *MultiError", combined)
	}
	if len(multi.Errors) != 2 {
		t.Errorf("multi.Errors 长度 = %d，期望 2", len(multi.Errors))
	}
	if combined.Error() != "error 1 (and 1 more errors)" {
		t.Errorf("combined.Error() = %q", combined.Error())
	}
	if !errors.Is(combined, err1) || !errors.Is(combined, err2) {
		t.Error("errors.Is 应能匹配 MultiError 中的每个错误")
	}
}
