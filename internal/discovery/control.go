package discovery

import (
	"context"
	"net"

	"github.com/google/uuid"

	"github.com/muurk/lanloc/internal/wire"
)

// SendAdd asks the provider listening at addr (its regular port) to
// advertise svc as well.
func SendAdd(ctx context.Context, addr *net.UDPAddr, svc Service) error {
	b, err := wire.EncodeAdd(wire.Add{Service: svc.Name, Port: svc.Port})
	if err != nil {
		return err
	}
	_, err = exchange(ctx, addr, b, false)
	return err
}

// SendQuit asks the provider at addr to stop. Providers only honor it when
// started with remote quit enabled.
func SendQuit(ctx context.Context, addr *net.UDPAddr) error {
	b, err := wire.EncodeQuit(wire.Quit{Nonce: uuid.NewString()})
	if err != nil {
		return err
	}
	_, err = exchange(ctx, addr, b, false)
	return err
}
