package partner

import (
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Document is a validated partner price list.
type Document struct {
	Shop       string
	Categories []DocumentCategory
	Goods      []DocumentGood
}

// DocumentCategory ids are local to the document.
type DocumentCategory struct {
	ID   int64
	Name string
}

type DocumentGood struct {
	ID         int64
	CategoryID int64
	Model      string
	Name       string
	Price      decimal.Decimal
	PriceRRC   decimal.Decimal
	Quantity   int
	// Parameters keeps document order so inserts are deterministic.
	Parameters []DocumentParameter
}

type DocumentParameter struct {
	Name  string
	Value string
}

// FieldError names the offending path inside the document.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ParseDocument decodes a YAML price list and checks its structure. Every
// problem found is reported, keyed by field path, in one validation error.
func ParseDocument(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, validationError(&FieldError{Field: "document", Message: "is not valid YAML"})
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, validationError(&FieldError{Field: "document", Message: "is empty"})
	}

	p := &parser{}
	doc := p.document(root.Content[0])
	if p.errs != nil {
		return nil, validationError(p.errs)
	}
	return doc, nil
}

func validationError(err error) error {
	details := map[string]string{}
	for _, e := range multierr.Errors(err) {
		if fe, ok := e.(*FieldError); ok {
			if _, seen := details[fe.Field]; !seen {
				details[fe.Field] = fe.Message
			}
			continue
		}
		details["document"] = e.Error()
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price list").WithDetails(details)
}

type parser struct {
	errs error
}

func (p *parser) fail(field, format string, args ...any) {
	p.errs = multierr.Append(p.errs, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (p *parser) document(node *yaml.Node) *Document {
	fields, ok := p.mapping(node, "document")
	if !ok {
		return nil
	}

	doc := &Document{}
	doc.Shop, _ = p.requiredString(fields, "shop", "shop")

	categoryIDs := map[int64]bool{}
	if seq, ok := p.sequence(fields, "categories", "categories"); ok {
		for i, item := range seq {
			path := fmt.Sprintf("categories[%d]", i)
			cat, ok := p.category(item, path)
			if !ok {
				continue
			}
			if categoryIDs[cat.ID] {
				p.fail(path+".id", "duplicates an earlier category id %d", cat.ID)
				continue
			}
			categoryIDs[cat.ID] = true
			doc.Categories = append(doc.Categories, cat)
		}
	}

	goodIDs := map[int64]bool{}
	if seq, ok := p.sequence(fields, "goods", "goods"); ok {
		for i, item := range seq {
			path := fmt.Sprintf("goods[%d]", i)
			good, ok := p.good(item, path)
			if !ok {
				continue
			}
			if !categoryIDs[good.CategoryID] {
				p.fail(path+".category", "references unknown category %d", good.CategoryID)
				continue
			}
			if goodIDs[good.ID] {
				p.fail(path+".id", "duplicates an earlier good id %d", good.ID)
				continue
			}
			goodIDs[good.ID] = true
			doc.Goods = append(doc.Goods, good)
		}
	}
	return doc
}

func (p *parser) category(node *yaml.Node, path string) (DocumentCategory, bool) {
	fields, ok := p.mapping(node, path)
	if !ok {
		return DocumentCategory{}, false
	}
	before := len(multierr.Errors(p.errs))
	cat := DocumentCategory{}
	cat.ID, _ = p.requiredInt(fields, "id", path+".id")
	cat.Name, _ = p.requiredString(fields, "name", path+".name")
	return cat, len(multierr.Errors(p.errs)) == before
}

func (p *parser) good(node *yaml.Node, path string) (DocumentGood, bool) {
	fields, ok := p.mapping(node, path)
	if !ok {
		return DocumentGood{}, false
	}
	before := len(multierr.Errors(p.errs))

	good := DocumentGood{}
	good.ID, _ = p.requiredInt(fields, "id", path+".id")
	good.CategoryID, _ = p.requiredInt(fields, "category", path+".category")
	good.Name, _ = p.requiredString(fields, "name", path+".name")
	if n, ok := fields["model"]; ok {
		good.Model, _ = p.scalarString(n, path+".model")
	}
	good.Price, _ = p.requiredAmount(fields, "price", path+".price")
	good.PriceRRC, _ = p.requiredAmount(fields, "price_rrc", path+".price_rrc")
	if qty, ok := p.requiredInt(fields, "quantity", path+".quantity"); ok {
		if qty < 0 {
			p.fail(path+".quantity", "must be >= 0")
		}
		good.Quantity = int(qty)
	}
	if n, ok := fields["parameters"]; ok && !isNull(n) {
		good.Parameters = p.parameters(n, path+".parameters")
	}
	return good, len(multierr.Errors(p.errs)) == before
}

func (p *parser) parameters(node *yaml.Node, path string) []DocumentParameter {
	if node.Kind != yaml.MappingNode {
		p.fail(path, "must be a mapping")
		return nil
	}
	out := make([]DocumentParameter, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := strings.TrimSpace(node.Content[i].Value)
		if name == "" {
			p.fail(path, "parameter names must not be empty")
			continue
		}
		value, ok := p.scalarString(node.Content[i+1], path+"."+name)
		if !ok {
			continue
		}
		out = append(out, DocumentParameter{Name: name, Value: value})
	}
	return out
}

// mapping indexes a mapping node by key.
func (p *parser) mapping(node *yaml.Node, path string) (map[string]*yaml.Node, bool) {
	if node == nil || node.Kind != yaml.MappingNode {
		p.fail(path, "must be a mapping")
		return nil, false
	}
	fields := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		fields[node.Content[i].Value] = node.Content[i+1]
	}
	return fields, true
}

func (p *parser) sequence(fields map[string]*yaml.Node, key, path string) ([]*yaml.Node, bool) {
	node, ok := fields[key]
	if !ok || isNull(node) {
		p.fail(path, "is required")
		return nil, false
	}
	if node.Kind != yaml.SequenceNode {
		p.fail(path, "must be a list")
		return nil, false
	}
	return node.Content, true
}

func (p *parser) requiredString(fields map[string]*yaml.Node, key, path string) (string, bool) {
	node, ok := fields[key]
	if !ok || isNull(node) {
		p.fail(path, "is required")
		return "", false
	}
	value, ok := p.scalarString(node, path)
	if ok && value == "" {
		p.fail(path, "must not be empty")
		return "", false
	}
	return value, ok
}

func (p *parser) scalarString(node *yaml.Node, path string) (string, bool) {
	if node.Kind != yaml.ScalarNode {
		p.fail(path, "must be a scalar")
		return "", false
	}
	return strings.TrimSpace(node.Value), true
}

func (p *parser) requiredInt(fields map[string]*yaml.Node, key, path string) (int64, bool) {
	node, ok := fields[key]
	if !ok || isNull(node) {
		p.fail(path, "is required")
		return 0, false
	}
	if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!int" {
		p.fail(path, "must be an integer")
		return 0, false
	}
	var value int64
	if err := node.Decode(&value); err != nil {
		p.fail(path, "must be an integer")
		return 0, false
	}
	return value, true
}

func (p *parser) requiredAmount(fields map[string]*yaml.Node, key, path string) (decimal.Decimal, bool) {
	node, ok := fields[key]
	if !ok || isNull(node) {
		p.fail(path, "is required")
		return decimal.Zero, false
	}
	tag := node.ShortTag()
	if node.Kind != yaml.ScalarNode || (tag != "!!int" && tag != "!!float") {
		p.fail(path, "must be a number")
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(strings.ReplaceAll(node.Value, "_", ""))
	if err != nil {
		// yaml ints may be written in hex or octal
		var i int64
		if decodeErr := node.Decode(&i); decodeErr != nil {
			p.fail(path, "must be a number")
			return decimal.Zero, false
		}
		value = decimal.NewFromInt(i)
	}
	if value.IsNegative() {
		p.fail(path, "must be >= 0")
		return decimal.Zero, false
	}
	return value.Round(2), true
}

func isNull(node *yaml.Node) bool {
	return node == nil || (node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null")
}
