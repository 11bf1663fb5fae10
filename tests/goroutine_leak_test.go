package tests

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// TestNoGoroutineLeaks verifica se há vazamento de goroutines
func TestNoGoroutineLeaks(t *testing.T) {
	// Usar goleak para detectar vazamento de goroutines
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("github.com/docker/docker.*"),
		goleak.IgnoreTopFunction("github.com/fsnotify/fsnotify.*"),
		goleak.IgnoreTopFunction("github.com/sirupsen/logrus.*"),
	)

	// Simular inicialização e parada de componentes
	_, cancel := context.WithCancel(context.Background())

	// Iniciar componentes aqui
	// app := NewApp(config)
	// app.Start(ctx)

	// Aguardar um pouco
	time.Sleep(100 * time.Millisecond)

	// Parar componentes
	cancel()
	
	// Aguardar limpeza
	time.Sleep(100 * time.Millisecond)
}
