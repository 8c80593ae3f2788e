package runner

import (
	"reflect"
	"testing"
)

func TestMergeEnv(t *testing.T) {
	base := []string{"A=1", "B=2"}
	got := MergeEnv(base, "B=3", "C=4", "malformed", "=x")

	want := []string{"A=1", "B=3", "C=4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeEnv = %v, want %v", got, want)
	}
	if base[1] != "B=2" {
		t.Errorf("MergeEnv modified base: %v", base)
	}
}

func TestEnvFromMap(t *testing.T) {
	got := EnvFromMap(map[string]string{"Z": "z", "A": "a=b"})
	want := []string{"A=a=b", "Z=z"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("EnvFromMap = %v, want %v", got, want)
	}
}

func TestLookupEnv(t *testing.T) {
	env := []string{"A=1", "AB=2", "A=3"}
	if v, ok := LookupEnv(env, "A"); !ok || v != "3" {
		t.Errorf("LookupEnv(A) = %q, %v", v, ok)
	}
	if _, ok := LookupEnv(env, "B"); ok {
		t.Errorf("LookupEnv(B) should miss")
	}
}
