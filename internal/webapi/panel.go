package webapi

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
)

var panelTmpl = template.Must(template.New("panel").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!doctype html>
<html lang="es">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="30">
<title>Ventas</title>
<style>
body{font-family:sans-serif;margin:2em;background:#f6f6f6}
table{border-collapse:collapse;background:#fff;width:100%}
th,td{border:1px solid #ddd;padding:6px 10px;text-align:left}
th{background:#333;color:#fff}
.total{margin-top:1em;font-size:1.2em;font-weight:bold}
</style>
</head>
<body>
<h1>Pagos registrados</h1>
<table>
<tr><th>#</th><th>Fecha</th><th>Dispositivo</th><th>Pago</th><th>Estado</th><th>Monto</th><th>Medio</th><th>Email</th></tr>
{{range $i, $p := .Entries}}
<tr>
<td>{{inc $i}}</td>
<td>{{$p.PaidAt.Format "2006-01-02 15:04:05"}}</td>
<td>{{$p.Device}}</td>
<td>{{$p.PaymentID}}</td>
<td>{{$p.Status}}</td>
<td>{{printf "%.2f" $p.Amount}}</td>
<td>{{$p.Method}}</td>
<td>{{$p.PayerEmail}}</td>
</tr>
{{else}}
<tr><td colspan="8">Sin pagos todavia</td></tr>
{{end}}
</table>
<div class="total">Total: {{printf "%.2f" .Total}} ({{.Count}} pagos)</div>
</body>
</html>`))

// panel renders the in-memory ledger as a small self-refreshing HTML page
// for the operator.
func panel(c echo.Context) error {
	ledger := GetApp(c).Ledger()
	data := map[string]interface{}{
		"Entries": ledger.Entries(),
		"Total":   ledger.TotalAmount(),
		"Count":   ledger.Len(),
	}
	var buf bytes.Buffer
	if err := panelTmpl.Execute(&buf, data); err != nil {
		return fail(c, http.StatusInternalServerError, "RENDER_ERROR", "panel render failed", err.Error())
	}
	return c.HTML(http.StatusOK, buf.String())
}
