package prompts

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"

	"commerce-agent/internal/domain/entity"
)

type ActionInfo struct {
	Name        string
	Parameters  string
	Description string
}

// PlanActions describes every action the interpreter may choose.
var PlanActions = []ActionInfo{
	{Name: entity.ActionSearchForProduct.String(), Parameters: "productName", Description: "type a query into the store search and submit it"},
	{Name: entity.ActionGoToProductPage.String(), Parameters: "productName", Description: "open the product page of a search result"},
	{Name: entity.ActionAddToCart.String(), Parameters: "productName", Description: "add the product on the current product page to the cart"},
	{Name: entity.ActionGetLocationInStore.String(), Parameters: "productName", Description: "read where the product is located in the store"},
	{Name: entity.ActionFindNearbyStore.String(), Description: "look up the nearest physical store"},
	{Name: entity.ActionViewShoppingCart.String(), Description: "open the shopping cart"},
	{Name: entity.ActionPlanCompleted.String(), Description: "the goal has been achieved"},
	{Name: entity.ActionClarifyBuyAction.String(), Parameters: "question", Description: "ask the shopper a question before continuing"},
}

type PageStateData struct {
	Goal      string
	Fragments string
}

type NextActionData struct {
	Goal          string
	History       string
	LastAction    string
	Fragments     string
	HasScreenshot bool
	Actions       []ActionInfo
}

type EndStateData struct {
	Goal string
}

type ComponentData struct {
	Component entity.ComponentName
	Hint      string
	Schema    ComponentSchema
	Fragments string
}

// Generator renders the embedded prompt templates.
type Generator struct {
	tmpl    *template.Template
	schemas map[entity.ComponentName]ComponentSchema
}

func NewGenerator() (*Generator, error) {
	tmpl, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	schemas, err := LoadComponentSchemas()
	if err != nil {
		return nil, err
	}
	return &Generator{tmpl: tmpl, schemas: schemas}, nil
}

func (g *Generator) PageState(data PageStateData) (string, error) {
	return g.execute(PageStateTemplate, data)
}

func (g *Generator) NextAction(data NextActionData) (string, error) {
	if data.Actions == nil {
		data.Actions = PlanActions
	}
	if data.LastAction == "" {
		data.LastAction = "none"
	}
	return g.execute(NextActionTemplate, data)
}

func (g *Generator) EndState(data EndStateData) (string, error) {
	return g.execute(EndStateTemplate, data)
}

func (g *Generator) Component(name entity.ComponentName, hint, fragments string) (string, error) {
	schema, ok := g.schemas[name]
	if !ok {
		return "", fmt.Errorf("%w: no schema for %s", entity.ErrComponentNotFound, name)
	}
	return g.execute(ComponentTemplate, ComponentData{
		Component: name,
		Hint:      hint,
		Schema:    schema,
		Fragments: fragments,
	})
}

// Components lists the schema names in a stable order.
func (g *Generator) Components() []entity.ComponentName {
	names := make([]entity.ComponentName, 0, len(g.schemas))
	for name := range g.schemas {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return names[i] < names[j]
	})
	return names
}

func (g *Generator) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := g.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
