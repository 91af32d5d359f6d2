package email

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AsyncSender despacha cada correo en su propia goroutine y devuelve de inmediato.
// Los fallos se registran pero nunca llegan al llamador.
type AsyncSender struct {
	logger  *zap.Logger
	next    Sender
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncSender(logger *zap.Logger, next Sender, timeout time.Duration) *AsyncSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AsyncSender{logger: logger, next: next, timeout: timeout}
}

func (a *AsyncSender) Send(ctx context.Context, subject, toEmail, htmlBody string) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Send(sendCtx, subject, toEmail, htmlBody); err != nil {
			a.logger.Warn("send email failed",
				zap.Error(err),
				zap.String("subject", subject),
				zap.String("email", toEmail),
			)
			return
		}
		a.logger.Info("email sent", zap.String("subject", subject), zap.String("email", toEmail))
	}()
	return nil
}

// Wait bloquea hasta que terminan los envíos en curso.
func (a *AsyncSender) Wait() {
	a.wg.Wait()
}
