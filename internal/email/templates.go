package email

import (
	"fmt"
	"html/template"
	"strings"
	"sync"
)

const TemplatePaymentReceipt = "payment_receipt"

const paymentReceiptTemplate = `<!DOCTYPE html>
<html><body>
<p>Hello{{if .FullName}} {{.FullName}}{{end}},</p>
<p>We received your payment of <strong>{{.Amount}} {{.Currency}}</strong>.</p>
<p>Your plan is now <strong>{{.Plan}}</strong> with {{.StorageLimit}} of storage.</p>
<p>Reference: {{.ReferenceID}}</p>
</body></html>`

// TemplateManager реализует TemplateRenderer
type TemplateManager struct {
	templates map[string]*template.Template
	mutex     sync.RWMutex
}

// NewTemplateManager создает менеджер со встроенными шаблонами
func NewTemplateManager() *TemplateManager {
	tm := &TemplateManager{templates: make(map[string]*template.Template)}
	if err := tm.AddTemplate(TemplatePaymentReceipt, paymentReceiptTemplate); err != nil {
		panic(err)
	}
	return tm
}

// Render рендерит шаблон с данными
func (tm *TemplateManager) Render(templateName string, data TemplateData) (string, error) {
	tm.mutex.RLock()
	tpl, exists := tm.templates[templateName]
	tm.mutex.RUnlock()

	if !exists {
		return "", fmt.Errorf("template not found: %s", templateName)
	}

	var buf strings.Builder
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// AddTemplate добавляет шаблон в менеджер
func (tm *TemplateManager) AddTemplate(name string, templateStr string) error {
	tpl, err := template.New(name).Parse(templateStr)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	tm.mutex.Lock()
	tm.templates[name] = tpl
	tm.mutex.Unlock()
	return nil
}
