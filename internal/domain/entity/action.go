package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ActionName string

const (
	ActionSearchForProduct   ActionName = "searchForProduct"
	ActionGoToProductPage    ActionName = "goToProductPage"
	ActionAddToCart          ActionName = "addToCart"
	ActionGetLocationInStore ActionName = "getLocationInStore"
	ActionFindNearbyStore    ActionName = "findNearbyStore"
	ActionViewShoppingCart   ActionName = "viewShoppingCart"
	ActionPlanCompleted      ActionName = "planCompleted"
	ActionClarifyBuyAction   ActionName = "clarifyBuyAction"
)

func (n ActionName) String() string {
	return string(n)
}

// PlanAction is one step proposed by the page interpreter. The set of
// variants is closed: only types in this package implement it.
type PlanAction interface {
	Name() ActionName
	planAction()
}

type SearchForProduct struct {
	ProductName string `json:"productName"`
}

type GoToProductPage struct {
	ProductName string `json:"productName,omitempty"`
}

type AddToCart struct {
	ProductName string `json:"productName,omitempty"`
}

type GetLocationInStore struct {
	ProductName string `json:"productName,omitempty"`
}

type FindNearbyStore struct{}

type ViewShoppingCart struct{}

type PlanCompleted struct{}

type ClarifyBuyAction struct {
	Question string `json:"question"`
}

func (SearchForProduct) Name() ActionName   { return ActionSearchForProduct }
func (GoToProductPage) Name() ActionName    { return ActionGoToProductPage }
func (AddToCart) Name() ActionName          { return ActionAddToCart }
func (GetLocationInStore) Name() ActionName { return ActionGetLocationInStore }
func (FindNearbyStore) Name() ActionName    { return ActionFindNearbyStore }
func (ViewShoppingCart) Name() ActionName   { return ActionViewShoppingCart }
func (PlanCompleted) Name() ActionName      { return ActionPlanCompleted }
func (ClarifyBuyAction) Name() ActionName   { return ActionClarifyBuyAction }

func (SearchForProduct) planAction()   {}
func (GoToProductPage) planAction()    {}
func (AddToCart) planAction()          {}
func (GetLocationInStore) planAction() {}
func (FindNearbyStore) planAction()    {}
func (ViewShoppingCart) planAction()   {}
func (PlanCompleted) planAction()      {}
func (ClarifyBuyAction) planAction()   {}

// IsTerminal reports whether the action ends a plan run.
func IsTerminal(a PlanAction) bool {
	switch a.(type) {
	case PlanCompleted, ClarifyBuyAction:
		return true
	default:
		return false
	}
}

type actionEnvelope struct {
	ActionName ActionName      `json:"actionName"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// DecodePlanAction parses the {"actionName": ..., "parameters": {...}} form
// returned by the interpreter.
func DecodePlanAction(data []byte) (PlanAction, error) {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode plan action: %w", err)
	}

	var action PlanAction
	switch env.ActionName {
	case ActionSearchForProduct:
		var a SearchForProduct
		if err := decodeParams(env.Parameters, &a); err != nil {
			return nil, err
		}
		action = a
	case ActionGoToProductPage:
		var a GoToProductPage
		if err := decodeParams(env.Parameters, &a); err != nil {
			return nil, err
		}
		action = a
	case ActionAddToCart:
		var a AddToCart
		if err := decodeParams(env.Parameters, &a); err != nil {
			return nil, err
		}
		action = a
	case ActionGetLocationInStore:
		var a GetLocationInStore
		if err := decodeParams(env.Parameters, &a); err != nil {
			return nil, err
		}
		action = a
	case ActionFindNearbyStore:
		action = FindNearbyStore{}
	case ActionViewShoppingCart:
		action = ViewShoppingCart{}
	case ActionPlanCompleted:
		action = PlanCompleted{}
	case ActionClarifyBuyAction:
		var a ClarifyBuyAction
		if err := decodeParams(env.Parameters, &a); err != nil {
			return nil, err
		}
		action = a
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.ActionName)
	}
	return action, nil
}

// DescribeAction renders an action as a single line for history prompts.
func DescribeAction(a PlanAction) string {
	if a == nil {
		return "none"
	}
	params, err := json.Marshal(a)
	if err != nil || string(params) == "{}" {
		return a.Name().String()
	}
	return a.Name().String() + " " + string(params)
}

func decodeParams(raw json.RawMessage, out any) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode parameters: %w", err)
	}
	return nil
}
