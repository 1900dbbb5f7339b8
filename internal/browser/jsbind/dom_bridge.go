// internal/browser/jsbind/dom_bridge.go
package jsbind

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/facespatch/internal/browser/dom"
)

// DOMBridge exposes a dom.Document to a Goja runtime as the browser globals
// window, self, document and console.
type DOMBridge struct {
	vm     *goja.Runtime
	logger *zap.Logger
	doc    *dom.Document

	window   *goja.Object
	document *goja.Object
}

// NewDOMBridge creates the bridge and installs its globals into vm.
func NewDOMBridge(vm *goja.Runtime, doc *dom.Document, logger *zap.Logger) *DOMBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &DOMBridge{
		vm:     vm,
		logger: logger.Named("dom_bridge"),
		doc:    doc,
	}
	b.document = b.newDocument()
	b.window = b.newWindow()
	b.initializeRuntime()
	return b
}

func (b *DOMBridge) initializeRuntime() {
	global := b.vm.GlobalObject()
	for name, value := range map[string]goja.Value{
		"window":   b.window,
		"self":     b.window,
		"document": b.document,
		"console":  b.newConsole(),
	} {
		if err := global.Set(name, value); err != nil {
			b.logger.Error("Failed to set global", zap.String("name", name), zap.Error(err))
		}
	}
}

// --- Window ---

func (b *DOMBridge) newWindow() *goja.Object {
	w := b.vm.NewObject()
	b.accessor(w, "location",
		func() goja.Value { return b.vm.ToValue(b.doc.Location()) },
		func(v goja.Value) { b.doc.Navigate(v.String()) })
	_ = w.Set("document", b.document)
	_ = w.Set("alert", func(call goja.FunctionCall) goja.Value {
		b.logger.Info("[JS Alert]", zap.String("message", call.Argument(0).String()))
		return goja.Undefined()
	})
	return w
}

// --- Console ---

func (b *DOMBridge) newConsole() *goja.Object {
	c := b.vm.NewObject()
	logAt := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			msg := strings.Join(parts, " ")
			switch level {
			case "error":
				b.logger.Error("[JS Console]", zap.String("message", msg))
			case "warn":
				b.logger.Warn("[JS Console]", zap.String("message", msg))
			default:
				b.logger.Debug("[JS Console]", zap.String("message", msg))
			}
			return goja.Undefined()
		}
	}
	for _, level := range []string{"log", "info", "debug", "warn", "error"} {
		_ = c.Set(level, logAt(level))
	}
	return c
}

// --- Document ---

func (b *DOMBridge) newDocument() *goja.Object {
	d := b.vm.NewObject()
	_ = d.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		return b.WrapNode(b.doc.ByID(call.Argument(0).String()))
	})
	_ = d.Set("getElementsByName", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		var out []*html.Node
		for _, n := range dom.FindByTag(b.doc.Root(), "input", "select", "textarea", "button", "form", "a", "iframe", "meta") {
			if dom.Attr(n, "name") == name {
				out = append(out, n)
			}
		}
		return b.WrapNodeList(out)
	})
	_ = d.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return b.WrapNodeList(dom.FindByTag(b.doc.Root(), call.Argument(0).String()))
	})
	b.accessor(d, "body", func() goja.Value { return b.WrapNode(b.doc.Body()) }, nil)
	b.accessor(d, "head", func() goja.Value { return b.WrapNode(b.doc.Head()) }, nil)
	b.accessor(d, "forms", func() goja.Value { return b.WrapNodeList(b.doc.Forms()) }, nil)
	b.accessor(d, "title",
		func() goja.Value {
			titles := dom.FindByTag(b.doc.Head(), "title")
			if len(titles) == 0 {
				return b.vm.ToValue("")
			}
			return b.vm.ToValue(dom.TextContent(titles[0]))
		},
		func(v goja.Value) {
			titles := dom.FindByTag(b.doc.Head(), "title")
			if len(titles) == 0 {
				return
			}
			dom.RemoveChildren(titles[0])
			titles[0].AppendChild(&html.Node{Type: html.TextNode, Data: v.String()})
		})
	b.accessor(d, "location",
		func() goja.Value { return b.vm.ToValue(b.doc.Location()) },
		func(v goja.Value) { b.doc.Navigate(v.String()) })
	return d
}

// --- Elements ---

// WrapNodeList converts nodes into a JS array of element wrappers.
func (b *DOMBridge) WrapNodeList(nodes []*html.Node) goja.Value {
	wrapped := make([]interface{}, len(nodes))
	for i, n := range nodes {
		wrapped[i] = b.WrapNode(n)
	}
	return b.vm.NewArray(wrapped...)
}

// WrapNode converts an element into a JS object; nil maps to null.
func (b *DOMBridge) WrapNode(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	e := b.vm.NewObject()
	_ = e.Set("tagName", strings.ToUpper(n.Data))
	_ = e.Set("nodeName", strings.ToUpper(n.Data))

	attrAccessor := func(name string) {
		b.accessor(e, name,
			func() goja.Value { return b.vm.ToValue(dom.Attr(n, name)) },
			func(v goja.Value) { b.doc.SetAttribute(n, name, v.String()) })
	}
	for _, name := range []string{"id", "name", "value", "type"} {
		attrAccessor(name)
	}
	b.accessor(e, "className",
		func() goja.Value { return b.vm.ToValue(dom.Attr(n, "class")) },
		func(v goja.Value) { b.doc.SetAttribute(n, "class", v.String()) })
	b.accessor(e, "textContent", func() goja.Value { return b.vm.ToValue(dom.TextContent(n)) }, nil)
	b.accessor(e, "parentNode", func() goja.Value {
		if n.Parent == nil || n.Parent.Type != html.ElementNode {
			return goja.Null()
		}
		return b.WrapNode(n.Parent)
	}, nil)
	b.accessor(e, "innerHTML",
		func() goja.Value { return b.vm.ToValue(dom.InnerHTML(n)) },
		func(v goja.Value) {
			nodes, err := b.doc.ParseFragment(n, v.String())
			if err != nil {
				panic(b.vm.NewGoError(fmt.Errorf("failed to parse HTML: %w", err)))
			}
			dom.RemoveChildren(n)
			for _, c := range nodes {
				n.AppendChild(c)
			}
		})

	_ = e.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if !dom.HasAttr(n, name) {
			return goja.Null()
		}
		return b.vm.ToValue(dom.Attr(n, name))
	})
	_ = e.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		b.doc.SetAttribute(n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	_ = e.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		dom.RemoveAttr(n, call.Argument(0).String())
		return goja.Undefined()
	})
	_ = e.Set("focus", func(call goja.FunctionCall) goja.Value {
		b.doc.Focus(dom.Attr(n, "id"))
		return goja.Undefined()
	})
	_ = e.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return b.WrapNodeList(dom.FindByTag(n, call.Argument(0).String()))
	})
	return e
}

// accessor defines a getter (and optional setter) property on obj.
func (b *DOMBridge) accessor(obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	getter := b.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
	setter := goja.Undefined()
	if set != nil {
		setter = b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	if err := obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
		b.logger.Error("Failed to define accessor", zap.String("property", name), zap.Error(err))
	}
}
