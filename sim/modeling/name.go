package modeling

import (
	"fmt"
	"strconv"
	"strings"
)

// A Name is a hierarchical name made of dot-separated tokens, such as
// "Platform.Memory.Socket" or "Core[2].Cache".
type Name struct {
	Tokens []NameToken
}

// NameToken is one element of a Name with its optional indices.
type NameToken struct {
	ElemName string
	Index    []int
}

// ParseName splits a name into tokens.
func ParseName(s string) (Name, error) {
	parts := strings.Split(s, ".")
	name := Name{Tokens: make([]NameToken, len(parts))}

	for i, part := range parts {
		token, err := parseNameToken(part)
		if err != nil {
			return Name{}, err
		}

		name.Tokens[i] = token
	}

	return name, nil
}

func parseNameToken(s string) (NameToken, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if strings.ContainsRune(s, ']') {
			return NameToken{}, fmt.Errorf("unmatched bracket in %q", s)
		}

		return NameToken{ElemName: s}, nil
	}

	token := NameToken{ElemName: s[:open]}
	rest := s[open:]

	for rest != "" {
		if rest[0] != '[' {
			return NameToken{}, fmt.Errorf("unexpected %q in %q", rest, s)
		}

		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return NameToken{}, fmt.Errorf("unmatched bracket in %q", s)
		}

		index, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return NameToken{}, fmt.Errorf("index in %q must be an integer", s)
		}

		token.Index = append(token.Index, index)
		rest = rest[end+1:]
	}

	return token, nil
}

// NameMustBeValid panics if the name does not follow the naming convention:
// dot-separated elements that are not empty, start with a capital letter,
// contain no underscore, dash or quote, and use square brackets for indices.
func NameMustBeValid(name string) {
	if err := ValidateName(name); err != nil {
		panic(fmt.Sprintf("name %q is not valid: %s", name, err))
	}
}

// ValidateName returns why the name does not follow the naming convention.
func ValidateName(name string) error {
	n, err := ParseName(name)
	if err != nil {
		return err
	}

	for _, token := range n.Tokens {
		if err := tokenMustBeValid(token); err != nil {
			return err
		}
	}

	return nil
}

func tokenMustBeValid(token NameToken) error {
	if token.ElemName == "" {
		return fmt.Errorf("element must not be empty")
	}

	if i := strings.IndexAny(token.ElemName, "_-\"' \t"); i >= 0 {
		return fmt.Errorf("element must not contain %q", token.ElemName[i])
	}

	if token.ElemName[0] < 'A' || token.ElemName[0] > 'Z' {
		return fmt.Errorf("element %s must start with a capital letter",
			token.ElemName)
	}

	return nil
}

// BuildName joins a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex joins a parent name and an indexed element name.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}
