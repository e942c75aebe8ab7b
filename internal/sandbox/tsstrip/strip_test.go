package tsstrip

import (
	"strings"
	"testing"
)

func TestStripInterface(t *testing.T) {
	src := `interface Point {
  x: number;
  y: number;
}
function dist(p: Point): number { return p.x; }`
	out := Strip(src)
	if strings.Contains(out, "interface") {
		t.Errorf("expected interface removed, got %q", out)
	}
	if !strings.Contains(out, "function dist(p) { return p.x; }") {
		t.Errorf("expected param/return annotations stripped, got %q", out)
	}
}

func TestStripTypeAlias(t *testing.T) {
	out := Strip(`type ID = string | number;
const x = 1;`)
	if strings.Contains(out, "type ID") {
		t.Errorf("expected type alias removed, got %q", out)
	}
}

func TestStripImportType(t *testing.T) {
	out := Strip(`import type { Foo } from "./foo";
import { bar, type Baz } from "./bar";
const x = 1;`)
	if strings.Contains(out, "import type") {
		t.Errorf("expected import type removed, got %q", out)
	}
	if strings.Contains(out, "type Baz") {
		t.Errorf("expected mixed type specifier removed, got %q", out)
	}
}

func TestStripAccessModifiersAndAbstract(t *testing.T) {
	src := `abstract class Base {
  private readonly name: string;
  public greet(): void {}
  abstract run(): void;
}`
	out := Strip(src)
	if strings.Contains(out, "private") || strings.Contains(out, "readonly") || strings.Contains(out, "public") {
		t.Errorf("expected access modifiers removed, got %q", out)
	}
	if strings.Contains(out, "abstract") {
		t.Errorf("expected abstract keyword removed, got %q", out)
	}
}

func TestStripImplements(t *testing.T) {
	out := Strip(`class Foo implements Bar, Baz {
  run() {}
}`)
	if strings.Contains(out, "implements") {
		t.Errorf("expected implements clause removed, got %q", out)
	}
}

func TestStripAssertionsPreservesAsConst(t *testing.T) {
	out := Strip(`const a = x as Foo;
const b = y as const;
const c = <Foo>z;
const d = w!.value;`)
	if strings.Contains(out, "as Foo") {
		t.Errorf("expected 'as Foo' assertion removed, got %q", out)
	}
	if !strings.Contains(out, "as const") {
		t.Errorf("expected 'as const' preserved, got %q", out)
	}
	if strings.Contains(out, "<Foo>z") {
		t.Errorf("expected angle-bracket assertion removed, got %q", out)
	}
}

func TestStripNonNullAssertionNotInsideStringLiteral(t *testing.T) {
	out := Strip(`const msg = "value!";
const v = obj!.prop;`)
	if !strings.Contains(out, `"value!"`) {
		t.Errorf("expected '!' inside string literal preserved, got %q", out)
	}
	if strings.Contains(out, "obj!.prop") {
		t.Errorf("expected non-null assertion stripped outside string, got %q", out)
	}
}

func TestStripGenericParameterLists(t *testing.T) {
	out := Strip(`function identity<T>(x: T): T { return x; }
class Box<T, U extends Map<string, Array<number>>> {}`)
	if strings.Contains(out, "<T>") || strings.Contains(out, "<T, U") {
		t.Errorf("expected generic param lists stripped, got %q", out)
	}
}

func TestStripSatisfies(t *testing.T) {
	out := Strip(`const config = { a: 1 } satisfies Config;`)
	if strings.Contains(out, "satisfies") {
		t.Errorf("expected satisfies expression removed, got %q", out)
	}
}

func TestStripThisParameter(t *testing.T) {
	out := Strip(`function greet(this: Window, name: string) { return name; }`)
	if strings.Contains(out, "this:") {
		t.Errorf("expected this-parameter stripped, got %q", out)
	}
}

func TestCollapsesWhitespace(t *testing.T) {
	out := Strip("const a = 1;\n\n\n\nconst b = 2;")
	if strings.Contains(out, "\n\n\n") {
		t.Errorf("expected runs of >=3 newlines collapsed, got %q", out)
	}
}

func TestDeclareAndOverloadsRemoved(t *testing.T) {
	out := Strip(`declare const VERSION: string;
function add(a: number, b: number): number;
function add(a: any, b: any): any { return a + b; }`)
	if strings.Contains(out, "declare") {
		t.Errorf("expected declare statement removed, got %q", out)
	}
}
