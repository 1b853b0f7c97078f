package driver

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/DuckSoft/gradir/internal/config"
	"github.com/DuckSoft/gradir/internal/logging"
)

func newTestDriver(t *testing.T, graphPattern string, mutate ...func(*config.Config)) *Driver {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	d, err := New(cfg, logging.Nop(), graphPattern)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return d
}

func TestProcess(t *testing.T) {
	src := `graph backward(%x: tensor, %dy: tensor<zero>) {
  %a = grad_of(%x, %dy) {
    %g = mul(%x, %x)
    yield %g
  }
  %z = autograd_zero()
  %s = autograd_add(%a, %z)
  return %s
}
`
	expected := `graph backward(%x: tensor, %dy: tensor<zero>) {
  %g = mul(%x, %x)
  return %g
}
`

	d := newTestDriver(t, "")
	res, err := d.Process(context.Background(), strings.NewReader(src), "test.gir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.Module.String(); got != expected {
		t.Errorf("wrong module after processing:\n%s\nexpected:\n%s", got, expected)
	}
	if len(res.Stats) != 1 || res.Stats[0].Graph != "backward" {
		t.Fatalf("unexpected stats: %+v", res.Stats)
	}
	if len(res.Stats[0].Passes) != 2 {
		t.Errorf("expected stats for 2 passes, got %d", len(res.Stats[0].Passes))
	}
}

func TestProcessReportsParseError(t *testing.T) {
	d := newTestDriver(t, "")
	_, err := d.Process(context.Background(), strings.NewReader("graph f( {"), "bad.gir")
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if !strings.Contains(err.Error(), "bad.gir") {
		t.Errorf("parse error does not name the file: %v", err)
	}
}

func TestProcessReportsVerifyErrors(t *testing.T) {
	src := `graph f(%a: tensor) {
  %s = autograd_add(%a)
  return %s
}
`
	d := newTestDriver(t, "")
	_, err := d.Process(context.Background(), strings.NewReader(src), "test.gir")
	if err == nil {
		t.Fatal("expected a verification error")
	}
	if !strings.Contains(err.Error(), "takes 2 operands") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOptimizeHonorsGraphFilter(t *testing.T) {
	src := `graph forward(%a: tensor, %b: tensor) {
  %s = autograd_add(%a, %b)
  return %s
}

graph backward(%a: tensor, %b: tensor) {
  %s = autograd_add(%a, %b)
  return %s
}
`
	expected := `graph forward(%a: tensor, %b: tensor) {
  %s = autograd_add(%a, %b)
  return %s
}

graph backward(%a: tensor, %b: tensor) {
  %t0 = add(%a, %b)
  return %t0
}
`

	d := newTestDriver(t, "back*")
	res, err := d.Process(context.Background(), strings.NewReader(src), "test.gir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.Module.String(); got != expected {
		t.Errorf("wrong module after processing:\n%s\nexpected:\n%s", got, expected)
	}
	if len(res.Stats) != 1 || res.Stats[0].Graph != "backward" {
		t.Errorf("expected stats for backward only, got %+v", res.Stats)
	}
}

func TestOptimizeRunsSelectedPassesOnly(t *testing.T) {
	src := `graph f(%a: tensor, %b: tensor) {
  %d = add(%a, %a)
  %s = autograd_add(%a, %b)
  return %s
}
`
	expected := `graph f(%a: tensor, %b: tensor) {
  %s = autograd_add(%a, %b)
  return %s
}
`

	d := newTestDriver(t, "", func(c *config.Config) {
		c.Opt.Passes = []string{"eliminate-dead-code"}
	})
	res, err := d.Process(context.Background(), strings.NewReader(src), "test.gir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.Module.String(); got != expected {
		t.Errorf("wrong module after processing:\n%s\nexpected:\n%s", got, expected)
	}
}

func TestNewRejectsUnknownPass(t *testing.T) {
	cfg := config.Default()
	cfg.Opt.Passes = []string{"fold-constants"}
	_, err := New(cfg, logging.Nop(), "")
	if err == nil {
		t.Fatal("expected an error for an unknown pass name")
	}
}

func TestNewRejectsBadGraphPattern(t *testing.T) {
	_, err := New(config.Default(), logging.Nop(), "[")
	if err == nil {
		t.Fatal("expected an error for an invalid graph pattern")
	}
}

func TestGolden(t *testing.T) {
	archives, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	if err != nil {
		t.Fatal(err)
	}
	if len(archives) == 0 {
		t.Fatal("no golden archives found")
	}

	for _, path := range archives {
		t.Run(filepath.Base(path), func(t *testing.T) {
			ar, err := txtar.ParseFile(path)
			if err != nil {
				t.Fatal(err)
			}
			var input, expected string
			for _, f := range ar.Files {
				switch f.Name {
				case "input.gir":
					input = string(f.Data)
				case "expected.gir":
					expected = string(f.Data)
				}
			}
			if input == "" || expected == "" {
				t.Fatal("archive needs input.gir and expected.gir sections")
			}

			d := newTestDriver(t, "")
			res, err := d.Process(context.Background(), strings.NewReader(input), path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := res.Module.String(); got != expected {
				t.Errorf("wrong module after processing:\n%s\nexpected:\n%s", got, expected)
			}
		})
	}
}
