package vdc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/session"
	"github.com/nerrad567/vdc-core/internal/transport"
	"github.com/nerrad567/vdc-core/internal/vdcapi"
)

var vdsmID = dsuid.FromName("test-vdsm", dsuid.NamespaceVDSM)

// vdsm is the far end of a host session.
type vdsm struct {
	t    *testing.T
	conn *transport.Conn
	done chan struct{}
}

func connect(t *testing.T, h *Host) *vdsm {
	t.Helper()
	a, b := net.Pipe()
	h.sessionCfg = session.Config{RequestTimeout: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	p := &vdsm{t: t, conn: transport.NewConn(b, transport.ConnConfig{}), done: make(chan struct{})}
	go func() {
		defer close(p.done)
		h.ServeConn(ctx, transport.NewConn(a, transport.ConnConfig{}))
	}()
	t.Cleanup(func() {
		cancel()
		p.conn.Close()
		<-p.done
	})
	return p
}

func (p *vdsm) send(env vdcapi.Envelope) {
	p.t.Helper()
	b, err := vdcapi.Encode(env)
	if err != nil {
		p.t.Fatalf("Encode() error: %v", err)
	}
	if err := p.conn.WriteFrame(context.Background(), b); err != nil {
		p.t.Fatalf("WriteFrame() error: %v", err)
	}
}

func (p *vdsm) recv() vdcapi.Envelope {
	p.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := p.conn.ReadFrame(ctx)
	if err != nil {
		p.t.Fatalf("ReadFrame() error: %v", err)
	}
	env, err := vdcapi.Decode(b)
	if err != nil {
		p.t.Fatalf("Decode() error: %v", err)
	}
	return env
}

func (p *vdsm) hello(host dsuid.DSUID) {
	p.t.Helper()
	p.send(vdcapi.Envelope{MessageID: 1, Payload: &vdcapi.RequestHello{DSUID: vdsmID, APIVersion: 3}})
	env := p.recv()
	if rh, ok := env.Payload.(*vdcapi.ResponseHello); !ok || rh.DSUID != host {
		p.t.Fatalf("hello answer = %s %+v, want ResponseHello{%s}", env.Type(), env.Payload, host)
	}
}

// answer acknowledges one vDC request of type want with code.
func (p *vdsm) answer(want vdcapi.MessageType, code vdcapi.ResultCode) vdcapi.Envelope {
	p.t.Helper()
	env := p.recv()
	if env.Type() != want || env.MessageID == 0 {
		p.t.Fatalf("got %s id %d, want request %s", env.Type(), env.MessageID, want)
	}
	p.send(vdcapi.Envelope{MessageID: env.MessageID, Payload: &vdcapi.GenericResponse{Code: code}})
	return env
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionAnnouncesVdcThenDevices(t *testing.T) {
	env := newTestEnv(t)
	p := connect(t, env.host)
	p.hello(env.host.DSUID())

	env1 := p.answer(vdcapi.TypeVdcSendAnnounceVdc, vdcapi.ErrOK)
	if got := env1.Payload.(*vdcapi.SendAnnounceVdc).DSUID; got != env.vdc.DSUID() {
		t.Errorf("announced vDC %s, want %s", got, env.vdc.DSUID())
	}
	for i := range env.lamps {
		ad := p.answer(vdcapi.TypeVdcSendAnnounceDevice, vdcapi.ErrOK).Payload.(*vdcapi.SendAnnounceDevice)
		if ad.VdcDSUID != env.vdc.DSUID() {
			t.Errorf("device %d announced under %s, want %s", i, ad.VdcDSUID, env.vdc.DSUID())
		}
	}

	waitFor(t, "announcement", func() bool { return env.lamps[0].Announced() && env.lamps[1].Announced() })
	if !env.vdc.Announced() {
		t.Error("vDC not marked announced")
	}
	if !env.metrics.isActive() {
		t.Error("metrics not told the session is active")
	}

	// bye ends the session and resets the announcement state
	p.send(vdcapi.Envelope{MessageID: 5, Payload: &vdcapi.SendBye{DSUID: vdsmID}})
	if resp, ok := p.recv().Payload.(*vdcapi.GenericResponse); !ok || resp.Code != vdcapi.ErrOK {
		t.Fatalf("bye answer = %+v, want ERR_OK", resp)
	}
	waitFor(t, "session end", func() bool { return env.host.Session() == nil })
	if env.lamps[0].Announced() || env.vdc.Announced() {
		t.Error("announcement not reset after session end")
	}
}

func TestSessionRejectedAnnouncement(t *testing.T) {
	env := newTestEnv(t)
	p := connect(t, env.host)
	p.hello(env.host.DSUID())

	p.answer(vdcapi.TypeVdcSendAnnounceVdc, vdcapi.ErrOK)
	rejected := p.answer(vdcapi.TypeVdcSendAnnounceDevice, vdcapi.ErrCodeInsufficientSto).Payload.(*vdcapi.SendAnnounceDevice).DSUID
	accepted := p.answer(vdcapi.TypeVdcSendAnnounceDevice, vdcapi.ErrOK).Payload.(*vdcapi.SendAnnounceDevice).DSUID

	reg := env.host.Registry()
	acc, err := reg.GetVdsd(accepted)
	if err != nil {
		t.Fatalf("GetVdsd() error = %v", err)
	}
	rej, err := reg.GetVdsd(rejected)
	if err != nil {
		t.Fatalf("GetVdsd() error = %v", err)
	}
	waitFor(t, "accepted announcement", acc.Announced)
	if rej.Announced() {
		t.Error("rejected vdSD marked announced")
	}
}

func TestSessionPushIdentifyAndShutdown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := connect(t, env.host)
	p.hello(env.host.DSUID())
	p.answer(vdcapi.TypeVdcSendAnnounceVdc, vdcapi.ErrOK)
	p.answer(vdcapi.TypeVdcSendAnnounceDevice, vdcapi.ErrOK)
	p.answer(vdcapi.TypeVdcSendAnnounceDevice, vdcapi.ErrOK)
	waitFor(t, "announcement", func() bool { return env.lamps[0].Announced() && env.lamps[1].Announced() })

	lamp := env.lamps[0]
	if err := env.host.UpdateChannelValue(ctx, lamp.DSUID(), 0, 25); err != nil {
		t.Fatalf("UpdateChannelValue() error = %v", err)
	}
	// pushChanges is off by default, so nothing is sent for the channel.
	if err := env.host.Identify(ctx, lamp.DSUID()); err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	got := p.recv()
	if id, ok := got.Payload.(*vdcapi.SendIdentify); !ok || id.DSUID != lamp.DSUID() || got.MessageID != 0 {
		t.Fatalf("got %s id %d, want SendIdentify notification", got.Type(), got.MessageID)
	}

	if err := env.host.Push(ctx, lamp.DSUID(), nil); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if _, ok := p.recv().Payload.(*vdcapi.SendPushProperty); !ok {
		t.Fatal("push not received")
	}
	if n := env.metrics.pushCount(); n != 1 {
		t.Errorf("pushes = %d, want 1", n)
	}

	if err := env.host.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	got = p.recv()
	if v, ok := got.Payload.(*vdcapi.SendVanish); !ok || v.DSUID != env.host.DSUID() {
		t.Fatalf("got %s, want SendVanish of the host", got.Type())
	}
	waitFor(t, "session end", func() bool { return env.host.Session() == nil })
}

func TestSessionAnswersPropertyRequests(t *testing.T) {
	env := newTestEnv(t)
	p := connect(t, env.host)
	p.hello(env.host.DSUID())
	p.answer(vdcapi.TypeVdcSendAnnounceVdc, vdcapi.ErrOK)
	p.answer(vdcapi.TypeVdcSendAnnounceDevice, vdcapi.ErrOK)
	p.answer(vdcapi.TypeVdcSendAnnounceDevice, vdcapi.ErrOK)

	p.send(getRequest(env.lamps[0].DSUID(), "name"))
	got := p.recv()
	resp, ok := got.Payload.(*vdcapi.ResponseGetProperty)
	if !ok || got.MessageID != 1 {
		t.Fatalf("got %s id %d, want ResponseGetProperty id 1", got.Type(), got.MessageID)
	}
	if name := leafString(t, resp.Properties, "name"); name != "lamp-a" {
		t.Errorf("name = %q, want lamp-a", name)
	}

	p.send(vdcapi.Envelope{MessageID: 2, Payload: &vdcapi.SendPing{DSUID: env.lamps[1].DSUID()}})
	if pong, ok := p.recv().Payload.(*vdcapi.SendPong); !ok || pong.DSUID != env.lamps[1].DSUID() {
		t.Error("ping to a vdSD not answered with pong")
	}
}
