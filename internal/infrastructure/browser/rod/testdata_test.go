package rod

// Shop fixture pages served by httptest in the browser tests.
const (
	ShopHomeHTML = `<!DOCTYPE html>
<html>
<head><title>Test Shop</title></head>
<body>
	<header>
		<form id="search" action="/search">
			<input id="q" type="text" name="q" aria-label="Search products" />
			<button id="search-go" type="submit">Search</button>
		</form>
		<a id="cart" href="/cart" data-testid="cart-button">Cart (0)</a>
	</header>
	<main><h1>Welcome</h1></main>
	<script>window.analytics = {};</script>
</body>
</html>`

	ResultsHTML = `<!DOCTYPE html>
<html>
<body>
	<ul id="results">
		<li class="tile"><a class="tile-link" href="/p/1">Wireless Mouse</a><span class="price">$19.99</span></li>
		<li class="tile"><a class="tile-link" href="/p/2">Gaming Mouse</a><span class="price">$49.99</span></li>
	</ul>
</body>
</html>`

	ProductHTML = `<!DOCTYPE html>
<html>
<body>
	<section class="hero">
		<h1>Wireless Mouse</h1>
		<p class="aisle">Aisle 12</p>
		<button id="add-to-cart">Add to cart</button>
		<span id="badge">0</span>
	</section>
	<script>
		document.getElementById('add-to-cart').addEventListener('click', function() {
			setTimeout(function() { document.getElementById('badge').textContent = '1'; }, 100);
		});
	</script>
</body>
</html>`

	FramedHTML = `<!DOCTYPE html>
<html>
<body>
	<p>outer</p>
	<iframe srcdoc="<html><body><p>inner store locator</p></body></html>"></iframe>
</body>
</html>`

	RestlessHTML = `<!DOCTYPE html>
<html>
<body>
	<p id="ticker">0</p>
	<script>
		var n = 0;
		setInterval(function() { document.getElementById('ticker').textContent = String(++n); }, 50);
	</script>
</body>
</html>`
)
