package ports

import "context"

// Custody mueve colateral entre cuentas. Lo implementa el caller.
// Cada llamada es atómica: o mueve todo el importe o no mueve nada.
type Custody interface {
	// Debit retira amount de account hacia el pool.
	Debit(ctx context.Context, account string, amount uint64) error

	// Credit paga amount desde el pool a account.
	Credit(ctx context.Context, account string, amount uint64) error
}

type transferKeyCtx struct{}

// WithTransferKey adjunta a ctx la clave de idempotencia de una transferencia.
// El pool la deriva del trade y del tramo (trader, treasury, reverso), así un
// reintento con el mismo RequestID repite las mismas claves.
func WithTransferKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, transferKeyCtx{}, key)
}

// TransferKey devuelve la clave adjunta con WithTransferKey, o "" si no hay.
func TransferKey(ctx context.Context) string {
	key, _ := ctx.Value(transferKeyCtx{}).(string)
	return key
}
