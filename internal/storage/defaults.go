package storage

import "grana/internal/core"

// Built-in configuration used whenever a user has no stored value for a
// key. Missing config is never an error; it resolves to these defaults.

func defaultCategories() []core.Category {
	return []core.Category{
		{Name: "Pagamentos", Keywords: []string{"cartão de crédito", "fatura", "pagamento fatura"}},
		{Name: "Compras", Keywords: []string{"mercado pago", "mercado livre", "compras a vista", "compras parceladas", "computec"}},
		{Name: "Assinaturas", Keywords: []string{"assinatura", "apple", "netflix"}},
		{Name: "Investimentos", Keywords: []string{"poupança", "investi"}},
		{Name: "Cuidados Pessoais", Keywords: []string{"barbearia"}},
		{Name: "Educação", Keywords: []string{"educação", "curso", "livro", "puc"}},
		{Name: "Saúde", Keywords: []string{"farmacia", "médico", "remédio"}},
		{Name: "Alimentação", Keywords: []string{"ifood", "marmitex", "mercado", "restaurante", "dualcoffe", "café", "pizza", "lanche"}},
		{Name: "Transporte", Keywords: []string{"carro", "combustivel", "combustível", "uber", "99", "gasolina", "transporte"}},
		{Name: core.CategorySalary, Keywords: []string{"salário"}},
		{Name: core.CategoryOtherIncome, Keywords: []string{"recebi", "ganhei"}},
		{Name: core.CategoryFallback, Keywords: []string{}},
	}
}

func defaultAccounts() core.Accounts {
	return core.Accounts{
		Accounts: []string{"Swile", "Itaú", "Nubank", "Inter"},
		Cards:    []string{"Mercado Pago", "Nubank", "Itaú"},
	}
}

func defaultCardRules() map[string]int {
	return map[string]int{
		"Mercado Pago": 28,
		"Nubank":       25,
		"Itaú":         20,
	}
}
