package entity

// ComponentName identifies a page schema the interpreter can match page
// content against. Field descriptions live in the prompts package.
type ComponentName string

const (
	ComponentSearchInput         ComponentName = "SearchInput"
	ComponentProductTile         ComponentName = "ProductTile"
	ComponentProductTileList     ComponentName = "ProductTileList"
	ComponentProductDetailsHero  ComponentName = "ProductDetailsHeroTile"
	ComponentShoppingCartButton  ComponentName = "ShoppingCartButton"
	ComponentShoppingCartDetails ComponentName = "ShoppingCartDetails"
	ComponentStoreLocation       ComponentName = "StoreLocation"
)

type SearchInput struct {
	CSSSelector             string `json:"cssSelector"`
	SubmitButtonCSSSelector string `json:"submitButtonCssSelector"`
}

type ProductTile struct {
	Name                string  `json:"name"`
	Brand               string  `json:"brand,omitempty"`
	Price               string  `json:"price,omitempty"`
	Rating              float64 `json:"rating,omitempty"`
	NumberOfReviews     int     `json:"numberOfReviews,omitempty"`
	DetailsLinkSelector string  `json:"detailsLinkSelector"`
}

type ProductTileList struct {
	Products []ProductTile `json:"products"`
}

type ProductDetailsHero struct {
	ProductName             string `json:"productName"`
	Price                   string `json:"price,omitempty"`
	Availability            string `json:"availability,omitempty"`
	PhysicalLocationInStore string `json:"physicalLocationInStore,omitempty"`
	AddToCartButtonSelector string `json:"addToCartButtonSelector,omitempty"`
	StoreName               string `json:"storeName,omitempty"`
}

type ShoppingCartButton struct {
	Label               string `json:"label,omitempty"`
	DetailsLinkSelector string `json:"detailsLinkSelector"`
}

type CartItem struct {
	ProductName string `json:"productName"`
	Price       string `json:"price,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
}

type ShoppingCartDetails struct {
	StoreName  string     `json:"storeName,omitempty"`
	TotalPrice string     `json:"totalPrice,omitempty"`
	Items      []CartItem `json:"items"`
}

type StoreLocation struct {
	StoreName           string `json:"storeName"`
	Address             string `json:"address,omitempty"`
	ZipCode             string `json:"zipCode,omitempty"`
	DetailsLinkSelector string `json:"detailsLinkSelector,omitempty"`
}
