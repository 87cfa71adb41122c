package main

import (
	"fmt"

	"plantcareapi/pkg/client"
	"plantcareapi/pkg/identifyflow"
	"plantcareapi/pkg/schemas"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newPlantsCmd(flags *globalFlags) *cobra.Command {

	cmd := &cobra.Command{
		Use:   "plants",
		Short: "List, show, add and delete plants",
	}

	cmd.AddCommand(newPlantsListCmd(flags))
	cmd.AddCommand(newPlantsAddCmd(flags))
	cmd.AddCommand(newPlantsShowCmd(flags))
	cmd.AddCommand(newPlantsDeleteCmd(flags))

	return cmd

}

func optionalText(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func newPlantsListCmd(flags *globalFlags) *cobra.Command {

	var sort string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your plants",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := session(ctx, flags)
			if err != nil {
				return err
			}

			plants, err := c.ListPlants(ctx, schemas.ParseSortOption(sort))
			if err != nil {
				return err
			}
			if len(plants) == 0 {
				pterm.Info.Println("Noch keine Pflanzen angelegt.")
				return nil
			}

			data := pterm.TableData{{"ID", "Name", "Art", "Standort", "Fotos", "Cover"}}
			for _, p := range plants {
				cover := "-"
				if photo := p.Cover(); photo != nil {
					cover = photo.Id.Hex()
				}
				data = append(data, []string{
					p.Id.Hex(),
					p.Name,
					optionalText(p.Species),
					optionalText(p.Location),
					fmt.Sprint(len(p.Photos)),
					cover,
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}

	cmd.Flags().StringVar(&sort, "sort", string(schemas.SortNewest), "newest or alphabetical")

	return cmd

}

func newPlantsAddCmd(flags *globalFlags) *cobra.Command {

	var (
		draft       client.PlantDraft
		identifyImg string
		pick        int
		policy      string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a plant, optionally identified from a photo",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			photoPolicy, err := client.ParsePhotoPolicy(policy)
			if err != nil {
				return err
			}

			c, err := session(ctx, flags)
			if err != nil {
				return err
			}
			c.PhotoPolicy = photoPolicy

			var photo []byte
			if identifyImg != "" {
				state, err := identify(ctx, c, identifyImg, pick, func(s schemas.IdentifySuggestion) {
					// explicit flags win over the suggestion
					name, species := draft.Name, draft.Species
					draft.FromSuggestion(s)
					if name != "" {
						draft.Name = name
					}
					if species != "" {
						draft.Species = species
					}
				}, func(p []byte) { photo = p })
				if err != nil {
					return err
				}
				if _, ok := state.(identifyflow.Error); ok {
					pterm.Warning.Println("Fahre ohne Erkennung fort.")
				}
			}

			if draft.Name == "" {
				return fmt.Errorf("a name is required (--name or --identify with --pick)")
			}

			plant, err := c.CreatePlantWithPhoto(ctx, draft, photo)
			if plant != nil {
				pterm.Success.Printf("Pflanze %q angelegt (%s)\n", plant.Name, plant.Id.Hex())
			}
			return err
		},
	}

	cmd.Flags().StringVar(&draft.Name, "name", "", "Plant name")
	cmd.Flags().StringVar(&draft.Species, "species", "", "Species")
	cmd.Flags().StringVar(&draft.Location, "location", "", "Location")
	cmd.Flags().StringVar(&draft.PlantedAt, "planted-at", "", "Planting date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&draft.Notes, "notes", "", "Notes")
	cmd.Flags().StringVar(&identifyImg, "identify", "", "Photo to identify, also uploaded as the plant photo")
	cmd.Flags().IntVar(&pick, "pick", 1, "Suggestion to use with --identify (1-based)")
	cmd.Flags().StringVar(&policy, "photo-policy", "soft", "soft keeps the plant when the photo upload fails, strict reports it")

	return cmd

}

func newPlantsShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a plant with its photo links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := session(ctx, flags)
			if err != nil {
				return err
			}

			p, err := c.GetPlant(ctx, args[0])
			if err != nil {
				return err
			}

			pterm.DefaultSection.Println(p.Name)
			pterm.Printfln("Art:        %s", optionalText(p.Species))
			pterm.Printfln("Standort:   %s", optionalText(p.Location))
			pterm.Printfln("Gepflanzt:  %s", optionalText(p.PlantedAt))
			pterm.Printfln("Notizen:    %s", optionalText(p.Notes))

			if len(p.Photos) == 0 {
				return nil
			}
			data := pterm.TableData{{"Foto", "Cover", "Link (1 h gültig)"}}
			for _, photo := range p.Photos {
				mark := ""
				if photo.IsCover {
					mark = "*"
				}
				data = append(data, []string{photo.Id.Hex(), mark, photo.Url})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
}

func newPlantsDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a plant and its photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := session(ctx, flags)
			if err != nil {
				return err
			}

			if err := c.DeletePlant(ctx, args[0]); err != nil {
				return err
			}
			pterm.Success.Printfln("Pflanze %s gelöscht", args[0])
			return nil
		},
	}
}
