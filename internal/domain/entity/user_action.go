package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	UserActionBuyProduct         ActionName = "buyProduct"
	UserActionSearchForProduct   ActionName = "searchForProduct"
	UserActionSelectSearchResult ActionName = "selectSearchResult"
	UserActionAddToCart          ActionName = "addToCart"
	UserActionViewShoppingCart   ActionName = "viewShoppingCart"
	UserActionFindNearbyStore    ActionName = "findNearbyStore"
	UserActionGetLocationInStore ActionName = "getLocationInStore"
	UserActionNavigate           ActionName = "navigate"
)

// UserAction is a top-level commerce request resolved by the dispatcher.
type UserAction interface {
	Name() ActionName
	userAction()
}

type BuyProductRequest struct {
	UserRequest string `json:"userRequest"`
}

type SearchProductRequest struct {
	ProductName string `json:"productName"`
}

type SelectSearchResultRequest struct {
	ProductName string `json:"productName,omitempty"`
	Position    int    `json:"position,omitempty"`
}

type AddToCartRequest struct {
	ProductName string `json:"productName,omitempty"`
}

type ViewShoppingCartRequest struct{}

type FindNearbyStoreRequest struct{}

type GetLocationInStoreRequest struct {
	ProductName string `json:"productName"`
}

type NavigateRequest struct {
	URL string `json:"url"`
}

func (BuyProductRequest) Name() ActionName         { return UserActionBuyProduct }
func (SearchProductRequest) Name() ActionName      { return UserActionSearchForProduct }
func (SelectSearchResultRequest) Name() ActionName { return UserActionSelectSearchResult }
func (AddToCartRequest) Name() ActionName          { return UserActionAddToCart }
func (ViewShoppingCartRequest) Name() ActionName   { return UserActionViewShoppingCart }
func (FindNearbyStoreRequest) Name() ActionName    { return UserActionFindNearbyStore }
func (GetLocationInStoreRequest) Name() ActionName { return UserActionGetLocationInStore }
func (NavigateRequest) Name() ActionName           { return UserActionNavigate }

func (BuyProductRequest) userAction()         {}
func (SearchProductRequest) userAction()      {}
func (SelectSearchResultRequest) userAction() {}
func (AddToCartRequest) userAction()          {}
func (ViewShoppingCartRequest) userAction()   {}
func (FindNearbyStoreRequest) userAction()    {}
func (GetLocationInStoreRequest) userAction() {}
func (NavigateRequest) userAction()           {}

// ParseUserAction accepts either the JSON envelope form or free text, which
// becomes a buyProduct request.
func ParseUserAction(input string) (UserAction, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("%w: empty request", ErrMissingParameter)
	}
	if !strings.HasPrefix(input, "{") {
		return BuyProductRequest{UserRequest: input}, nil
	}

	var env actionEnvelope
	if err := json.Unmarshal([]byte(input), &env); err != nil {
		return nil, fmt.Errorf("decode user action: %w", err)
	}

	var action UserAction
	switch env.ActionName {
	case UserActionBuyProduct:
		var a BuyProductRequest
		if err := decodeParams(env.Parameters, &a); err != nil {
			return nil, err
		}
		action = a
	case UserActionSearchForProduct:
		var a SearchProductRequest
		if err := decodeParams(env.Parameters, &a); err != nil {
			return nil, err
		}
		action = a
	case UserActionSelectSearchResult:
		var a SelectSearchResultRequest
		if err := decodeParams(env.Parameters, &a); err != nil {
			return nil, err
		}
		action = a
	case UserActionAddToCart:
		var a AddToCartRequest
		if err := decodeParams(env.Parameters, &a); err != nil {
			return nil, err
		}
		action = a
	case UserActionViewShoppingCart:
		action = ViewShoppingCartRequest{}
	case UserActionFindNearbyStore:
		action = FindNearbyStoreRequest{}
	case UserActionGetLocationInStore:
		var a GetLocationInStoreRequest
		if err := decodeParams(env.Parameters, &a); err != nil {
			return nil, err
		}
		action = a
	case UserActionNavigate:
		var a NavigateRequest
		if err := decodeParams(env.Parameters, &a); err != nil {
			return nil, err
		}
		action = a
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.ActionName)
	}
	return action, nil
}

// ActionResult is the conversational outcome of a user action. Failures are
// reported as text with Error set.
type ActionResult struct {
	Message  string
	Entities []NamedEntity
	Error    bool
	PlanID   string
	State    PlanState
}
