// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tsstrip strips TypeScript-only syntax down to plain JavaScript
// using regexp passes plus manual balanced-bracket scanning for nested
// generic parameter lists. It is not a parser: it implements the literal
// ordered algorithm the isolate needs to run TypeScript source in a V8
// isolate without a real compiler on the host.
package tsstrip

import (
	"regexp"
	"strings"
)

var (
	interfaceRe      = regexp.MustCompile(`(?ms)^\s*(export\s+)?interface\s+\w+(\s*<[^{]*>)?\s*(extends\s+[^{]+)?\{[^}]*\}\s*`)
	typeAliasRe      = regexp.MustCompile(`(?m)^\s*(export\s+)?type\s+\w+(\s*<[^=]*>)?\s*=\s*[^;]+;\s*$`)
	importTypeRe     = regexp.MustCompile(`(?m)^\s*import\s+type\s+.*;\s*$`)
	exportTypeRe     = regexp.MustCompile(`(?m)^\s*export\s+type\s*\{[^}]*\}\s*(from\s+['"][^'"]+['"])?;\s*$`)
	mixedTypeSpecRe  = regexp.MustCompile(`\btype\s+(\w+)(\s*,|\s*})`)
	declareStmtRe    = regexp.MustCompile(`(?m)^\s*declare\s+.*;\s*$`)
	overloadSigRe    = regexp.MustCompile(`(?m)^\s*(export\s+)?function\s+\w+\s*\([^)]*\)\s*:\s*[^;{]+;\s*$`)
	accessModRe      = regexp.MustCompile(`\b(public|private|protected|readonly)\s+`)
	abstractClassRe  = regexp.MustCompile(`\babstract\s+(class)\b`)
	abstractMethodRe = regexp.MustCompile(`(?m)^(\s*)abstract\s+(\w+.*;)\s*$`)
	implementsRe     = regexp.MustCompile(`\s*implements\s+[\w.<>,\s]+\{`)
	asConstMarker    = "\x00AS_CONST\x00"
	asConstRe        = regexp.MustCompile(`\bas\s+const\b`)
	asTypeRe         = regexp.MustCompile(`\bas\s+[\w.\[\]<>,\s|&]+`)
	angleAssertRe    = regexp.MustCompile(`<[\w.\[\]<>,\s|&]+>(\w)`)
	nonNullRe        = regexp.MustCompile(`(\w|\)|\])!([.\s,;)\]]|$)`)
	satisfiesRe      = regexp.MustCompile(`\bsatisfies\s+[\w.\[\]<>,\s|&]+`)
	thisParamRe      = regexp.MustCompile(`\(\s*this\s*:\s*[^,)]+,?\s*`)
	emptyImportRe    = regexp.MustCompile(`(?m)^\s*import\s*\{\s*\}\s*from\s+['"][^'"]+['"];\s*$`)
	manyNewlinesRe   = regexp.MustCompile(`\n{3,}`)
	manySpacesRe     = regexp.MustCompile(`[ \t]{2,}`)
	stringLitRe      = regexp.MustCompile(`'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"|` + "`(?:\\\\.|[^`\\\\])*`")
)

// Strip converts TypeScript source to plain JavaScript via the literal
// ordered algorithm: interfaces, type aliases, import/export type forms,
// declare/overloads, access modifiers, assertions (preserving as const),
// generic parameter lists, parameter/return annotations, this-parameters,
// satisfies expressions, then whitespace cleanup. String literal contents
// are protected from the `!`-stripping pass.
func Strip(src string) string {
	protected, literals := protectStringLiterals(src)

	protected = interfaceRe.ReplaceAllString(protected, "")
	protected = typeAliasRe.ReplaceAllString(protected, "")
	protected = importTypeRe.ReplaceAllString(protected, "")
	protected = exportTypeRe.ReplaceAllString(protected, "")
	protected = mixedTypeSpecRe.ReplaceAllString(protected, "$2")
	protected = declareStmtRe.ReplaceAllString(protected, "")
	protected = overloadSigRe.ReplaceAllString(protected, "")
	protected = accessModRe.ReplaceAllString(protected, "")
	protected = abstractClassRe.ReplaceAllString(protected, "$1")
	protected = abstractMethodRe.ReplaceAllString(protected, "")
	protected = implementsRe.ReplaceAllString(protected, "{")

	protected = asConstRe.ReplaceAllString(protected, asConstMarker)
	protected = asTypeRe.ReplaceAllString(protected, "")
	protected = strings.ReplaceAll(protected, asConstMarker, "as const")
	protected = angleAssertRe.ReplaceAllString(protected, "$1")
	protected = nonNullRe.ReplaceAllString(protected, "$1$2")
	protected = satisfiesRe.ReplaceAllString(protected, "")

	protected = stripGenericParamLists(protected)
	protected = stripParamAndReturnAnnotations(protected)
	protected = thisParamRe.ReplaceAllString(protected, "(")

	protected = emptyImportRe.ReplaceAllString(protected, "")
	protected = manyNewlinesRe.ReplaceAllString(protected, "\n\n")
	protected = manySpacesRe.ReplaceAllString(protected, " ")

	out := restoreStringLiterals(protected, literals)
	return strings.TrimSpace(out)
}

// protectStringLiterals replaces every string/template literal with a
// placeholder so later passes (notably the non-null-assertion stripper)
// never rewrite text the user wrote as data.
func protectStringLiterals(src string) (string, []string) {
	var literals []string
	out := stringLitRe.ReplaceAllStringFunc(src, func(m string) string {
		literals = append(literals, m)
		return "\x00LIT" + itoa(len(literals)-1) + "\x00"
	})
	return out, literals
}

func restoreStringLiterals(src string, literals []string) string {
	for i, lit := range literals {
		src = strings.ReplaceAll(src, "\x00LIT"+itoa(i)+"\x00", lit)
	}
	return src
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}

// stripGenericParamLists removes `<...>` generic parameter lists that
// immediately precede a function/class/identifier's parameter list or
// brace, via balanced-bracket scanning so arbitrary nesting depth (e.g.
// `Map<string, Array<number>>`) is handled without a parser.
func stripGenericParamLists(src string) string {
	var b strings.Builder
	i := 0
	for i < len(src) {
		if src[i] == '<' && looksLikeGenericOpen(src, i) {
			depth := 1
			j := i + 1
			for j < len(src) && depth > 0 {
				switch src[j] {
				case '<':
					depth++
				case '>':
					depth--
				}
				j++
			}
			if depth == 0 {
				i = j
				continue
			}
		}
		b.WriteByte(src[i])
		i++
	}
	return b.String()
}

// looksLikeGenericOpen heuristically decides whether '<' at position i
// opens a generic parameter list (preceded by an identifier char and
// followed, eventually, by '(' or '{') rather than a less-than operator.
func looksLikeGenericOpen(src string, i int) bool {
	if i == 0 {
		return false
	}
	prev := src[i-1]
	if !(isIdentByte(prev)) {
		return false
	}
	depth := 0
	for j := i; j < len(src) && j < i+200; j++ {
		switch src[j] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				k := j + 1
				for k < len(src) && (src[k] == ' ' || src[k] == '\t') {
					k++
				}
				if k < len(src) && (src[k] == '(' || src[k] == '{' || src[k] == ':') {
					return true
				}
				return false
			}
		case ';', '\n':
			return false
		}
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

var paramAnnotationRe = regexp.MustCompile(`(\w)\s*:\s*[\w.\[\]<>,\s|&'"]+([,)])`)
var returnAnnotationRe = regexp.MustCompile(`\)\s*:\s*[\w.\[\]<>,\s|&'"]+?(\s*(?:\{|=>))`)

// stripParamAndReturnAnnotations removes `: Type` from function parameters
// and `): Type` return annotations, leaving the parameter name intact.
func stripParamAndReturnAnnotations(src string) string {
	src = returnAnnotationRe.ReplaceAllString(src, ")$1")
	src = paramAnnotationRe.ReplaceAllString(src, "$1$2")
	return src
}
