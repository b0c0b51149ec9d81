package commerce

import (
	"context"
	"fmt"
	"strings"

	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/application/service"
	"commerce-agent/internal/domain/entity"
)

// Steps holds the browser sequences shared by the plan loop and the
// top-level user actions. Each sequence asks the interpreter for the page
// component it needs, then drives the browser through its selectors.
type Steps struct {
	browser     output.BrowserPort
	interpreter output.PageInterpreterPort
	logger      output.LoggerPort
}

func NewSteps(browser output.BrowserPort, interpreter output.PageInterpreterPort, logger output.LoggerPort) *Steps {
	return &Steps{
		browser:     browser,
		interpreter: interpreter,
		logger:      logger.WithField("component", "steps"),
	}
}

func (s *Steps) component(ctx context.Context, name entity.ComponentName, hint string, out any) error {
	fragments, err := s.browser.GetHTMLFragments(ctx)
	if err != nil {
		return fmt.Errorf("capture page content: %w", err)
	}
	shot, err := s.browser.Screenshot(ctx)
	if err != nil {
		s.logger.Warn("Screenshot unavailable", "component", name, "error", err)
		shot = nil
	}

	err = s.interpreter.GetPageComponent(ctx, output.ComponentRequest{
		Component:  name,
		Hint:       hint,
		Fragments:  fragments,
		Screenshot: shot,
	}, out)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", entity.ErrComponentNotFound, name, err)
	}
	return nil
}

func (s *Steps) clickAndLoad(ctx context.Context, selector string) error {
	if err := s.browser.WaitForSelector(ctx, selector); err != nil {
		return err
	}
	if err := s.browser.Click(ctx, selector); err != nil {
		return err
	}
	return s.browser.AwaitPageLoad(ctx)
}

func (s *Steps) SearchForProduct(ctx context.Context, productName string) error {
	if productName == "" {
		return fmt.Errorf("%w: productName", entity.ErrMissingParameter)
	}

	var input entity.SearchInput
	if err := s.component(ctx, entity.ComponentSearchInput, "", &input); err != nil {
		return err
	}
	if input.CSSSelector == "" || input.SubmitButtonCSSSelector == "" {
		return fmt.Errorf("%w: %s has no selectors", entity.ErrComponentNotFound, entity.ComponentSearchInput)
	}
	s.logger.Debug("Searching", "productName", productName, "input", input.CSSSelector)

	if err := s.browser.Click(ctx, input.CSSSelector); err != nil {
		return err
	}
	if err := s.browser.EnterText(ctx, productName, input.CSSSelector); err != nil {
		return err
	}
	return s.clickAndLoad(ctx, input.SubmitButtonCSSSelector)
}

// ProductTiles lists the product tiles on a search results page.
func (s *Steps) ProductTiles(ctx context.Context) ([]entity.ProductTile, error) {
	var list entity.ProductTileList
	if err := s.component(ctx, entity.ComponentProductTileList, "", &list); err != nil {
		return nil, err
	}
	return list.Products, nil
}

func (s *Steps) GoToProductPage(ctx context.Context, productName string, entities *service.EntityCollector) error {
	if productName == "" {
		return fmt.Errorf("%w: productName", entity.ErrMissingParameter)
	}

	var tile entity.ProductTile
	if err := s.component(ctx, entity.ComponentProductTile, productName, &tile); err != nil {
		return err
	}
	return s.OpenProduct(ctx, tile, productName, entities)
}

// OpenProduct follows a tile's details link and records the product.
// fallbackName is used when the tile carries no name.
func (s *Steps) OpenProduct(ctx context.Context, tile entity.ProductTile, fallbackName string, entities *service.EntityCollector) error {
	if tile.DetailsLinkSelector == "" {
		return fmt.Errorf("%w: %s has no details link", entity.ErrComponentNotFound, entity.ComponentProductTile)
	}
	if err := s.clickAndLoad(ctx, tile.DetailsLinkSelector); err != nil {
		return err
	}

	name := tile.Name
	if name == "" {
		name = fallbackName
	}
	entities.AddEntity(name, []string{entity.EntityTypeProduct}, tileMetadata(tile, s.browser.CurrentURL()))
	return nil
}

func (s *Steps) AddToCart(ctx context.Context, productName string, entities *service.EntityCollector) error {
	var hero entity.ProductDetailsHero
	if err := s.component(ctx, entity.ComponentProductDetailsHero, productName, &hero); err != nil {
		return err
	}
	if hero.AddToCartButtonSelector == "" {
		return fmt.Errorf("%w: %s has no add-to-cart button", entity.ErrComponentNotFound, entity.ComponentProductDetailsHero)
	}

	if err := s.browser.WaitForSelector(ctx, hero.AddToCartButtonSelector); err != nil {
		return err
	}
	if err := s.browser.Click(ctx, hero.AddToCartButtonSelector); err != nil {
		return err
	}
	if err := s.browser.AwaitPageInteraction(ctx); err != nil {
		return err
	}

	meta := heroMetadata(hero)
	meta["inCart"] = true
	entities.AddEntity(productLabel(hero, productName), []string{entity.EntityTypeProduct}, meta)
	return nil
}

// GetLocationInStore returns the aisle or shelf reported on the product page.
func (s *Steps) GetLocationInStore(ctx context.Context, productName string, entities *service.EntityCollector) (string, error) {
	var hero entity.ProductDetailsHero
	if err := s.component(ctx, entity.ComponentProductDetailsHero, productName, &hero); err != nil {
		return "", err
	}

	entities.AddEntity(productLabel(hero, productName), []string{entity.EntityTypeProduct}, heroMetadata(hero))
	return hero.PhysicalLocationInStore, nil
}

func (s *Steps) FindNearbyStore(ctx context.Context, entities *service.EntityCollector) (*entity.StoreLocation, error) {
	var store entity.StoreLocation
	if err := s.component(ctx, entity.ComponentStoreLocation, "", &store); err != nil {
		return nil, err
	}

	if store.DetailsLinkSelector != "" {
		if err := s.clickAndLoad(ctx, store.DetailsLinkSelector); err != nil {
			return nil, err
		}
	}
	if store.StoreName == "" {
		return nil, fmt.Errorf("%w: %s has no store name", entity.ErrComponentNotFound, entity.ComponentStoreLocation)
	}

	meta := map[string]any{}
	if store.Address != "" {
		meta["address"] = store.Address
	}
	if store.ZipCode != "" {
		meta["zipCode"] = store.ZipCode
	}
	entities.AddEntity(store.StoreName, []string{entity.EntityTypeStore}, meta)
	return &store, nil
}

func (s *Steps) ViewShoppingCart(ctx context.Context, entities *service.EntityCollector) (*entity.ShoppingCartDetails, error) {
	var button entity.ShoppingCartButton
	if err := s.component(ctx, entity.ComponentShoppingCartButton, "", &button); err != nil {
		return nil, err
	}
	if button.DetailsLinkSelector == "" {
		return nil, fmt.Errorf("%w: %s has no link", entity.ErrComponentNotFound, entity.ComponentShoppingCartButton)
	}
	if err := s.clickAndLoad(ctx, button.DetailsLinkSelector); err != nil {
		return nil, err
	}

	var cart entity.ShoppingCartDetails
	if err := s.component(ctx, entity.ComponentShoppingCartDetails, "", &cart); err != nil {
		return nil, err
	}

	for i, item := range cart.Items {
		meta := map[string]any{"inCart": true}
		if item.Price != "" {
			meta["price"] = item.Price
		}
		if item.Quantity > 0 {
			meta["quantity"] = item.Quantity
		}
		entities.AddEntity(entityName(item.ProductName, "cart item", i), []string{entity.EntityTypeProduct}, meta)
	}
	return &cart, nil
}

// entityName keys unnamed list entries by their 1-based position so they do
// not collapse into a single entity.
func entityName(name, kind string, index int) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fmt.Sprintf("%s %d", kind, index+1)
}

func tileMetadata(tile entity.ProductTile, url string) map[string]any {
	meta := map[string]any{}
	if tile.Brand != "" {
		meta["brand"] = tile.Brand
	}
	if tile.Price != "" {
		meta["price"] = tile.Price
	}
	if tile.Rating > 0 {
		meta["rating"] = tile.Rating
	}
	if tile.NumberOfReviews > 0 {
		meta["numberOfReviews"] = tile.NumberOfReviews
	}
	if url != "" {
		meta["url"] = url
	}
	return meta
}

func heroMetadata(hero entity.ProductDetailsHero) map[string]any {
	meta := map[string]any{}
	if hero.Price != "" {
		meta["price"] = hero.Price
	}
	if hero.Availability != "" {
		meta["availability"] = hero.Availability
	}
	if hero.PhysicalLocationInStore != "" {
		meta["physicalLocationInStore"] = hero.PhysicalLocationInStore
	}
	if hero.StoreName != "" {
		meta["storeName"] = hero.StoreName
	}
	return meta
}

// productLabel prefers the name shown on the page so the entity merges with
// the one recorded from the product tile.
func productLabel(hero entity.ProductDetailsHero, requested string) string {
	if name := strings.TrimSpace(hero.ProductName); name != "" {
		return name
	}
	return strings.TrimSpace(requested)
}
