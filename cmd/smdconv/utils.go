package main

import (
	"github.com/Waterpicker/JglTF/converter"
	"github.com/Waterpicker/JglTF/smd"
	"github.com/sqweek/dialog"
)

// convertModel re-encodes a single model into the format named by output's extension.
func convertModel(input, output, implicitBone string) error {
	doc, err := smd.Load(input)
	if err != nil {
		return err
	}
	if implicitBone != converter.KeepImplicitBone {
		if doc, err = smd.RemoveImplicitBone(doc, implicitBone); err != nil {
			return err
		}
	}
	return smd.Save(doc, output)
}

// dialogSelector asks through native file dialogs.
type dialogSelector struct{}

func (dialogSelector) SelectDirectory() (string, error) {
	dir, err := dialog.Directory().Title("Select model directory").Browse()
	if err == dialog.ErrCancelled {
		return "", converter.ErrCancelled
	}
	return dir, err
}

func (dialogSelector) SelectFile(context string) (string, error) {
	path, err := dialog.File().
		Filter("Images", "png", "tga", "bmp", "jpg", "psd").
		Filter("All Files", "*").
		Title(context).
		Load()
	if err == dialog.ErrCancelled {
		return "", converter.ErrCancelled
	}
	return path, err
}
