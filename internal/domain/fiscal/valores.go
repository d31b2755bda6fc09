// Cálculo dos valores derivados da NFS-e (base de cálculo, ISS e valor
// líquido), conforme o modelo ABRASF. Puro: sem I/O, sem estado.

package fiscal

import "github.com/shopspring/decimal"

var cem = decimal.NewFromInt(100)

// Valores são as entradas do cálculo. Todos os montantes em decimal para
// evitar erros de ponto flutuante em dinheiro.
type Valores struct {
	ValorServicos          decimal.Decimal
	ValorDeducoes          decimal.Decimal
	DescontoIncondicionado decimal.Decimal
	AliquotaIss            decimal.Decimal // percentual (5 = 5%)
	IssRetido              bool
}

// ValoresDerivados é o resultado do cálculo, arredondado a 2 casas.
type ValoresDerivados struct {
	BaseCalculo      decimal.Decimal
	ValorIss         decimal.Decimal
	ValorLiquidoNfse decimal.Decimal
}

// Calcular aplica as regras do modelo:
//
//	baseCalculo      = valorServicos - valorDeducoes
//	valorIss         = baseCalculo * aliquotaIss / 100
//	valorLiquidoNfse = baseCalculo - descontoIncondicionado - (issRetido ? valorIss : 0)
//
// O ISS só é subtraído do líquido quando retido na fonte pelo tomador.
func Calcular(v Valores) ValoresDerivados {
	base := v.ValorServicos.Sub(v.ValorDeducoes)
	iss := base.Mul(v.AliquotaIss).Div(cem).Round(2)

	liquido := base.Sub(v.DescontoIncondicionado)
	if v.IssRetido {
		liquido = liquido.Sub(iss)
	}

	return ValoresDerivados{
		BaseCalculo:      base.Round(2),
		ValorIss:         iss,
		ValorLiquidoNfse: liquido.Round(2),
	}
}
