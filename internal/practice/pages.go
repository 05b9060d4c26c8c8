package practice

// PageVersion is one variant of a page. HTML is an html/template executed
// with PageData.
type PageVersion struct {
	Name    string
	HTML    string
	Headers map[string]string
}

// PageDefinition holds all versions of a single page.
type PageDefinition struct {
	Path        string
	Description string
	// Protected pages redirect to the login page without a session.
	Protected bool
	Versions  map[int]PageVersion
}

// PageData is what page templates see.
type PageData struct {
	User    string
	Error   string
	Version int
}

// AllPages returns every practice page definition.
func AllPages() []PageDefinition {
	return []PageDefinition{
		loginPage(),
		invoicesPage(),
		importPage(),
	}
}

const pageStyle = `
    <style>
        body { font-family: system-ui, sans-serif; margin: 0; background: #f5f6fa; color: #222; }
        header { background: #2b2d42; color: #fff; padding: 12px 24px; display: flex; align-items: center; gap: 12px; }
        main { max-width: 720px; margin: 32px auto; background: #fff; padding: 24px; border-radius: 8px; box-shadow: 0 2px 6px rgba(0,0,0,.08); }
        label { display: block; margin-top: 12px; font-weight: 600; }
        input { width: 100%; padding: 8px; margin-top: 4px; box-sizing: border-box; }
        button { margin-top: 16px; padding: 10px 18px; border: 0; border-radius: 4px; background: #4361ee; color: #fff; cursor: pointer; }
        button:disabled { background: #9aa5d6; cursor: default; }
        table { width: 100%; border-collapse: collapse; margin-top: 16px; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid #eee; }
        .error { color: #c1121f; margin-top: 12px; }
        .overlay { position: fixed; inset: 0; background: rgba(255,255,255,.7); display: flex; align-items: center; justify-content: center; font-size: 1.4em; }
        .toast { margin-top: 16px; padding: 10px; background: #d8f3dc; border-radius: 4px; }
    </style>`

// ===== LOGIN PAGE =====
func loginPage() PageDefinition {
	return PageDefinition{
		Path:        "/",
		Description: "Sign-in form",
		Versions: map[int]PageVersion{
			1: {
				Name: "stable",
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <title>uiflow practice - Sign in</title>` + pageStyle + `
</head>
<body>
    <header><img src="/static/logo.svg" alt="uiflow" width="32" height="32"><span>Practice Portal</span></header>
    <main>
        <h1>Sign in</h1>
        <form method="post" action="/login">
            <label for="username">Username</label>
            <input id="username" name="username" type="email" data-testid="username" autocomplete="username">
            <label for="password">Password</label>
            <input id="password" name="password" type="password" data-testid="password" autocomplete="current-password">
            <button type="submit" data-testid="sign-in">Sign in</button>
        </form>
        {{if .Error}}<p class="error" role="alert" data-testid="login-error">{{.Error}}</p>{{end}}
    </main>
</body>
</html>`,
			},
			2: {
				Name: "slow",
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <title>uiflow practice - Sign in</title>` + pageStyle + `
</head>
<body>
    <header><img src="/static/logo.svg" alt="uiflow" width="32" height="32"><span>Practice Portal</span></header>
    <main>
        <h1>Sign in</h1>
        <form method="post" action="/login">
            <label for="username">Username</label>
            <input id="username" name="username" type="email" data-testid="username">
            <label for="password">Password</label>
            <input id="password" name="password" type="password" data-testid="password">
            <button type="submit" data-testid="sign-in" disabled>Sign in</button>
        </form>
        {{if .Error}}<p class="error" role="alert" data-testid="login-error">{{.Error}}</p>{{end}}
    </main>
    <div class="overlay" id="blocker">Loading&hellip;</div>
    <script>
        setTimeout(function () { document.getElementById("blocker").remove(); }, 1200);
        setTimeout(function () { document.querySelector("[data-testid=sign-in]").disabled = false; }, 1500);
    </script>
</body>
</html>`,
			},
			3: {
				Name: "inaccessible",
				HTML: `<!DOCTYPE html>
<html>
<head>` + pageStyle + `
    <style>.faint { color: #bbb; background: #fff; }</style>
</head>
<body>
    <header><img src="/static/logo.svg" width="32" height="32"><span class="faint">Practice Portal</span></header>
    <main>
        <h1>Sign in</h1>
        <form method="post" action="/login">
            <input name="username" type="email" data-testid="username" placeholder="Username">
            <input name="password" type="password" data-testid="password" placeholder="Password">
            <button type="submit" data-testid="sign-in"><span aria-hidden="true">&rarr;</span></button>
        </form>
        {{if .Error}}<p class="error faint" data-testid="login-error">{{.Error}}</p>{{end}}
    </main>
</body>
</html>`,
			},
		},
	}
}

// ===== INVOICES PAGE =====
func invoicesPage() PageDefinition {
	return PageDefinition{
		Path:        "/invoices",
		Description: "Invoice list behind a processing overlay",
		Protected:   true,
		Versions: map[int]PageVersion{
			1: {
				Name: "three invoices",
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <title>uiflow practice - Invoices</title>` + pageStyle + `
</head>
<body>
    <header><img src="/static/logo.svg" alt="uiflow" width="32" height="32"><span>Practice Portal</span></header>
    <main>
        <h1 data-testid="welcome">Welcome, {{.User}}</h1>
        <p data-testid="invoice-count">3 invoices</p>
        <table aria-label="Invoices">
            <thead><tr><th>Number</th><th>Customer</th><th>Status</th></tr></thead>
            <tbody>
                <tr><td>INV-0997</td><td>Harbor Logistics</td><td>Paid</td></tr>
                <tr><td>INV-0998</td><td>Northwind Freight</td><td>Open</td></tr>
                <tr><td>INV-0999</td><td>Blue Anchor</td><td>Draft</td></tr>
            </tbody>
        </table>
        <p><a href="/import">Import invoice</a></p>
    </main>
    <div class="overlay" id="processing"><div>Processing</div></div>
    <script>
        setTimeout(function () { document.getElementById("processing").remove(); }, 600);
    </script>
</body>
</html>`,
			},
			2: {
				Name: "empty",
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <title>uiflow practice - Invoices</title>` + pageStyle + `
</head>
<body>
    <header><img src="/static/logo.svg" alt="uiflow" width="32" height="32"><span>Practice Portal</span></header>
    <main>
        <h1 data-testid="welcome">Welcome, {{.User}}</h1>
        <p data-testid="invoice-count">0 invoices</p>
        <p><a href="/import">Import invoice</a></p>
    </main>
</body>
</html>`,
			},
		},
	}
}

// ===== IMPORT PAGE =====
func importPage() PageDefinition {
	return PageDefinition{
		Path:        "/import",
		Description: "Import invoice form with a draft toast",
		Protected:   true,
		Versions: map[int]PageVersion{
			1: {
				Name: "stable",
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <title>uiflow practice - Import Invoice</title>` + pageStyle + `
</head>
<body>
    <header><img src="/static/logo.svg" alt="uiflow" width="32" height="32"><span>Practice Portal</span></header>
    <main>
        <h1>Import Invoice</h1>
        <form id="import-form">
            <label for="number">Invoice number</label>
            <input id="number" name="number" data-testid="invoice-number">
            <label for="amount">Amount</label>
            <input id="amount" name="amount" inputmode="decimal" data-testid="invoice-amount">
            <button type="submit">Save as draft</button>
        </form>
        <div id="toast-slot"></div>
    </main>
    <script>
        document.getElementById("import-form").addEventListener("submit", function (ev) {
            ev.preventDefault();
            var number = document.getElementById("number").value.trim();
            setTimeout(function () {
                var toast = document.createElement("p");
                toast.className = "toast";
                toast.setAttribute("role", "status");
                toast.setAttribute("data-testid", "toast");
                toast.textContent = number ? "Invoice " + number + " saved as draft" : "Invoice number is required";
                var slot = document.getElementById("toast-slot");
                slot.replaceChildren(toast);
            }, 300);
        });
    </script>
</body>
</html>`,
			},
		},
	}
}

const logoSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 32 32"><rect width="32" height="32" rx="6" fill="#4361ee"/><path d="M9 9v9a7 7 0 0 0 14 0V9" stroke="#fff" stroke-width="3" fill="none"/></svg>`
