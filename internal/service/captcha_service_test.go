package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/musictutor-next/internal/config"
	"github.com/musictutor-next/internal/constants"
)

func newImageCaptchaService() *CaptchaService {
	return NewCaptchaService(config.CaptchaConfig{
		Provider: "IMAGE",
		Scenes:   config.CaptchaSceneConfig{Login: true},
	})
}

func TestCaptchaVerifyConsumesChallenge(t *testing.T) {
	svc := newImageCaptchaService()
	challenge, err := svc.GenerateImageChallenge()
	if err != nil {
		t.Fatalf("generate challenge failed: %v", err)
	}
	if challenge.CaptchaID == "" || !strings.HasPrefix(challenge.ImageBase64, "data:image/") {
		t.Fatalf("unexpected challenge: id=%q image prefix=%.20q", challenge.CaptchaID, challenge.ImageBase64)
	}
	answer := svc.imageStore().Get(challenge.CaptchaID, false)
	if len(answer) != 5 {
		t.Fatalf("answer length = %d, want 5", len(answer))
	}

	if err := svc.Verify(constants.CaptchaSceneLogin, CaptchaVerifyPayload{}); !errors.Is(err, ErrCaptchaRequired) {
		t.Fatalf("expected ErrCaptchaRequired, got %v", err)
	}
	if err := svc.Verify(constants.CaptchaSceneLogin, CaptchaVerifyPayload{CaptchaID: challenge.CaptchaID, CaptchaCode: "zzzzz"}); !errors.Is(err, ErrCaptchaInvalid) {
		t.Fatalf("expected ErrCaptchaInvalid, got %v", err)
	}

	// 错误答案也会使挑战失效
	next, err := svc.GenerateImageChallenge()
	if err != nil {
		t.Fatalf("generate challenge failed: %v", err)
	}
	code := svc.imageStore().Get(next.CaptchaID, false)
	if err := svc.Verify(constants.CaptchaSceneLogin, CaptchaVerifyPayload{CaptchaID: next.CaptchaID, CaptchaCode: code}); err != nil {
		t.Fatalf("verify with correct code failed: %v", err)
	}
	if err := svc.Verify(constants.CaptchaSceneLogin, CaptchaVerifyPayload{CaptchaID: next.CaptchaID, CaptchaCode: code}); !errors.Is(err, ErrCaptchaInvalid) {
		t.Fatalf("captcha must not be reusable, got %v", err)
	}
}

func TestCaptchaScenesAndDisabledProvider(t *testing.T) {
	svc := newImageCaptchaService()
	if !svc.Enabled(constants.CaptchaSceneLogin) || svc.Enabled(constants.CaptchaSceneRegister) {
		t.Fatalf("only the login scene should be enabled")
	}
	if err := svc.Verify(constants.CaptchaSceneRegister, CaptchaVerifyPayload{}); err != nil {
		t.Fatalf("disabled scene should pass, got %v", err)
	}

	disabled := NewCaptchaService(config.CaptchaConfig{Provider: "turnstile", Scenes: config.CaptchaSceneConfig{Login: true}})
	if disabled.Enabled(constants.CaptchaSceneLogin) {
		t.Fatalf("unsupported provider should disable captcha")
	}
	if _, err := disabled.GenerateImageChallenge(); !errors.Is(err, ErrCaptchaConfigInvalid) {
		t.Fatalf("expected ErrCaptchaConfigInvalid, got %v", err)
	}
	var nilService *CaptchaService
	if err := nilService.Verify(constants.CaptchaSceneLogin, CaptchaVerifyPayload{}); err != nil {
		t.Fatalf("nil service should pass, got %v", err)
	}
}
