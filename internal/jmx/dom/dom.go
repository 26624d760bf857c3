// Package dom provides a minimal ordered XML element tree used to build,
// parse and query JMeter test plans. Attribute order is preserved so
// rendered plans are deterministic.
package dom

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Attr is a single XML attribute.
type Attr struct {
	Key   string
	Value string
}

// Element is one node of the tree.
type Element struct {
	Tag      string
	Attrs    []Attr
	Text     string
	Children []*Element
}

// New creates an element with the given tag.
func New(tag string) *Element {
	return &Element{Tag: tag}
}

// SetAttr sets an attribute, replacing an existing value for the same key.
func (e *Element) SetAttr(key, value string) *Element {
	for i := range e.Attrs {
		if e.Attrs[i].Key == key {
			e.Attrs[i].Value = value
			return e
		}
	}
	e.Attrs = append(e.Attrs, Attr{Key: key, Value: value})
	return e
}

// Attr returns the attribute value for key, or "".
func (e *Element) Attr(key string) string {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// SetText sets the element text.
func (e *Element) SetText(text string) *Element {
	e.Text = text
	return e
}

// Add appends child elements and returns the receiver.
func (e *Element) Add(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// Child returns the first direct child with the given tag, or nil.
func (e *Element) Child(tag string) *Element {
	for _, c := range e.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// ChildrenByTag returns the direct children with the given tag.
func (e *Element) ChildrenByTag(tag string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the first descendant with the given tag, depth-first, or nil.
func (e *Element) Find(tag string) *Element {
	for _, c := range e.Children {
		if c.Tag == tag {
			return c
		}
		if found := c.Find(tag); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every descendant with the given tag, depth-first.
func (e *Element) FindAll(tag string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
		out = append(out, c.FindAll(tag)...)
	}
	return out
}

// FindByAttr returns the first descendant with the tag and attribute value.
func (e *Element) FindByAttr(tag, key, value string) *Element {
	for _, c := range e.Children {
		if c.Tag == tag && c.Attr(key) == value {
			return c
		}
		if found := c.FindByAttr(tag, key, value); found != nil {
			return found
		}
	}
	return nil
}

// Prop returns the text of the first descendant with the given tag whose
// name attribute matches, which is how JMeter stores element properties.
func (e *Element) Prop(tag, name string) (string, bool) {
	if found := e.FindByAttr(tag, "name", name); found != nil {
		return found.Text, true
	}
	return "", false
}

// Render serializes the tree with the XML declaration, 2-space indentation
// and a trailing newline.
func Render(root *Element) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteByte('\n')
	writeElement(&buf, root, 0)
	buf.WriteByte('\n')
	return buf.Bytes()
}

func writeElement(buf *bytes.Buffer, e *Element, depth int) {
	indent := strings.Repeat("  ", depth)
	buf.WriteString(indent)
	buf.WriteByte('<')
	buf.WriteString(e.Tag)
	for _, a := range e.Attrs {
		fmt.Fprintf(buf, ` %s="%s"`, a.Key, escapeAttr(a.Value))
	}

	if len(e.Children) == 0 && e.Text == "" {
		buf.WriteString("/>")
		return
	}

	buf.WriteByte('>')
	if len(e.Children) == 0 {
		buf.WriteString(escapeText(e.Text))
		buf.WriteString("</")
		buf.WriteString(e.Tag)
		buf.WriteByte('>')
		return
	}

	for _, c := range e.Children {
		buf.WriteByte('\n')
		writeElement(buf, c, depth+1)
	}
	buf.WriteByte('\n')
	buf.WriteString(indent)
	buf.WriteString("</")
	buf.WriteString(e.Tag)
	buf.WriteByte('>')
}

// escapeText escapes character data. Quotes stay literal so Groovy
// expressions in prop values remain readable.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// escapeAttr escapes attribute values.
func escapeAttr(s string) string {
	s = escapeText(s)
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}

// Parse builds an element tree from XML bytes.
func Parse(data []byte) (*Element, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var root *Element
	var stack []*Element
	var texts []*strings.Builder

	for {
		token, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to parse XML: %v", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			el := New(t.Name.Local)
			for _, a := range t.Attr {
				el.SetAttr(a.Name.Local, a.Value)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("unexpected second root element <%s>", t.Name.Local)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
			texts = append(texts, &strings.Builder{})

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected closing tag </%s>", t.Name.Local)
			}
			el := stack[len(stack)-1]
			text := texts[len(texts)-1].String()
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]
			// Whitespace between child elements is formatting, not content
			if len(el.Children) == 0 {
				el.Text = text
			}

		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("no root element found")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("unclosed element <%s>", stack[len(stack)-1].Tag)
	}
	return root, nil
}
