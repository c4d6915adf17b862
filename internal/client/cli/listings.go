package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dpavlenko/stayhub/internal/client/api"
)

func (a *App) list(ctx context.Context) {

	listings, err := a.client.Listings(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	if len(listings) == 0 {
		fmt.Println("No listings yet")
		return
	}

	for _, l := range listings {
		fmt.Printf("%s  %-30s %-15s %d/night\n", l.ID, l.Title, l.City, l.PricePerNight)
	}
}

func (a *App) addListing(ctx context.Context) {

	title, err := GetSimpleText(a.reader, "Enter title", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	city, err := GetSimpleText(a.reader, "Enter city", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	priceText, err := GetSimpleText(a.reader, "Enter price per night", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	price, err := strconv.ParseInt(priceText, 10, 64)
	if err != nil {
		log.Printf("price must be a number")
		return
	}

	created, err := a.client.CreateListing(ctx, title, city, price)
	if err != nil {
		var ve *api.ValidationError
		if errors.As(err, &ve) {
			for field, problem := range ve.Fields {
				log.Printf("  %s: %s", field, problem)
			}
			return
		}
		log.Printf("error: %v", err)
		return
	}

	fmt.Printf("Listing created: %s\n", created.ID)
}
