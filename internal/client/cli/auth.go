package cli

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/dpavlenko/stayhub/internal/client/api"
	"github.com/dpavlenko/stayhub/internal/common"
)

func (a *App) Login(ctx context.Context) {

	email, err := GetSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	password, err := GetPassword(os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	defer common.WipeByteArray(password)

	account, err := a.client.Login(ctx, email, string(password))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrAccountBlocked):
			log.Printf("Login refused: this account is blocked")
		case errors.Is(err, common.ErrorUnauthorized):
			log.Printf("Login unsuccessful: wrong email or password")
		case errors.Is(err, api.ErrUnavailable):
			log.Printf("Server unavailable: %s", err.Error())
		default:
			log.Printf("Login unsuccessful: %s", err.Error())
		}
		return
	}

	a.userName = account.Email
	a.startListener(ctx, account.ID)
	log.Printf("Login successful")
}

func (a *App) Register(ctx context.Context) {

	email, err := GetSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	role, err := GetSimpleText(a.reader, "Enter role (guest/host)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	password, err := GetPassword(os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	defer common.WipeByteArray(password)

	if _, err := a.client.Register(ctx, email, string(password), role); err != nil {
		var ve *api.ValidationError
		if errors.As(err, &ve) {
			for field, problem := range ve.Fields {
				log.Printf("  %s: %s", field, problem)
			}
			return
		}
		log.Printf("Registration unsuccessful: %s", err.Error())
		return
	}

	log.Printf("Registration successful, you can log in now")
}

func (a *App) Logout(ctx context.Context) {

	if err := a.client.Logout(ctx); err != nil {
		log.Printf("Logout error: %s", err.Error())
		return
	}

	a.userName = ""
	if a.stopListener != nil {
		a.stopListener()
		a.stopListener = nil
	}
	log.Printf("Logged out")
}
